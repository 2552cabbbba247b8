package itemstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/timely/libs/mongox"
)

type OpenConfig struct {
	// Backend is "mongo" or "memory".
	Backend  string
	MongoURI string
	Database string
}

// Stores bundles both stores of one backend with its lifecycle hooks.
type Stores struct {
	Slots        SlotStore
	Reservations ReservationStore
	// Shared is set when other processes write to the same store.
	Shared       bool
	Ready        func(context.Context) error
	Close        func()
}

func Open(ctx context.Context, cfg OpenConfig) (*Stores, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		m := NewMemory()
		return &Stores{
			Slots:        m,
			Reservations: m,
			Ready:        func(context.Context) error { return nil },
			Close:        func() {},
		}, nil
	case "", "mongo":
		client, err := mongox.Open(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		db := client.Database(cfg.Database)
		slots := NewMongoSlots(db)
		reservations := NewMongoReservations(db)
		if err := slots.EnsureIndexes(ctx); err != nil {
			mongox.Close(client)
			return nil, err
		}
		if err := reservations.EnsureIndexes(ctx); err != nil {
			mongox.Close(client)
			return nil, err
		}
		return &Stores{
			Slots:        slots,
			Reservations: reservations,
			Shared:       true,
			Ready:        mongox.ReadyCheck(client),
			Close:        func() { mongox.Close(client) },
		}, nil
	default:
		return nil, fmt.Errorf("unknown item store backend %q", cfg.Backend)
	}
}
