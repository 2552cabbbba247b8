package itemstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SlotsCollection        = "time_slots"
	ReservationsCollection = "reservations"
)

type MongoSlots struct {
	coll *mongo.Collection
}

func NewMongoSlots(db *mongo.Database) *MongoSlots {
	return &MongoSlots{coll: db.Collection(SlotsCollection)}
}

func (r *MongoSlots) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerEmail", Value: 1}, {Key: "startTime", Value: 1}},
			Options: options.Index().SetName("owner_start_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create slot indexes: %w", err)
	}
	return nil
}

func (r *MongoSlots) ListSlots(ctx context.Context, owner string) ([]Slot, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"ownerEmail": owner},
		options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}, {Key: "endTime", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	var slots []Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *MongoSlots) InsertSlot(ctx context.Context, slot Slot) error {
	if _, err := r.coll.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("failed to insert slot: %w", err)
	}
	return nil
}

func (r *MongoSlots) DeleteSlot(ctx context.Context, owner, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "ownerEmail": owner})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type MongoReservations struct {
	coll *mongo.Collection
}

func NewMongoReservations(db *mongo.Database) *MongoReservations {
	return &MongoReservations{coll: db.Collection(ReservationsCollection)}
}

func (r *MongoReservations) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participantEmail", Value: 1}, {Key: "startTime", Value: 1}},
			Options: options.Index().SetName("participant_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "slotId", Value: 1}, {Key: "participantEmail", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("slot_participant_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create reservation indexes: %w", err)
	}
	return nil
}

func (r *MongoReservations) ListReservations(ctx context.Context, participant string) ([]Reservation, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"participantEmail": participant},
		options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}, {Key: "endTime", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	var items []Reservation
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return items, nil
}

func (r *MongoReservations) InsertReservations(ctx context.Context, items []Reservation) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(items))
	for _, it := range items {
		docs = append(docs, it)
	}
	if _, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert reservations: %w", err)
	}
	return nil
}

func (r *MongoReservations) DeleteReservations(ctx context.Context, creator, slotID string) ([]Reservation, error) {
	filter := bson.M{"slotId": slotID, "creatorEmail": creator}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "participantEmail", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	var items []Reservation
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	if _, err := r.coll.DeleteMany(ctx, filter); err != nil {
		return nil, fmt.Errorf("failed to delete reservations: %w", err)
	}
	return items, nil
}
