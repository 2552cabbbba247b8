package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/timely/libs/db"
	"github.com/md-rashed-zaman/timely/libs/kafkax"
)

// Publisher polls unpublished outbox rows and relays them through the producer.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	producer  *kafkax.Producer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
	retention time.Duration
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
	// Retention is how long relayed rows are kept. Zero keeps them forever.
	Retention time.Duration
}

func NewPublisher(pool *db.Pool, repo *Repository, producer *kafkax.Producer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		producer:  producer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if !p.producer.Enabled() {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	var purge <-chan time.Time
	if p.retention > 0 {
		purgeTicker := time.NewTicker(p.retention / 4)
		defer purgeTicker.Stop()
		purge = purgeTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.publishBatch(ctx)
			if err != nil {
				pending, _ := p.repo.Pending(ctx)
				p.logger.Error("outbox publish failed", "err", err, "pending", pending)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		case now := <-purge:
			n, err := p.repo.PurgePublished(ctx, now.Add(-p.retention))
			if err != nil {
				p.logger.Error("outbox purge failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Info("purged relayed outbox rows", "count", n)
			}
		}
	}
}

// publishBatch relays rows under FOR UPDATE SKIP LOCKED so several replicas can run the loop.
// A failed write rolls the batch back and it is retried on the next tick.
func (p *Publisher) publishBatch(ctx context.Context) (int, error) {
	var published int
	err := p.pool.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		ids := make([]int64, 0, len(records))
		for _, r := range records {
			if err := p.producer.PublishEvent(r.Trace.Resume(ctx), r.EventID, r.EventType, r.AggregateID, r.Payload); err != nil {
				return err
			}
			ids = append(ids, r.ID)
		}
		published = len(ids)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
