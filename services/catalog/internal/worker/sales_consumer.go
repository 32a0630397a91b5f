// Package worker folds commerce events into catalog counters.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
)

// PurchaseCompletedEvent is the payload commerce publishes on
// distro.purchase.completed.
type PurchaseCompletedEvent struct {
	EventID     string `json:"event_id"`
	AlbumID     string `json:"album_id"`
	BandID      string `json:"band_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	OccurredAt  string `json:"occurred_at"`
}

// StartSalesConsumer subscribes to distro.purchase.completed and applies
// idempotent sales-counter increments. Redeliveries are absorbed by the
// processed_events insert; only the first receipt increments.
func StartSalesConsumer(ctx context.Context, nc *nats.Conn, pool *pgxpool.Pool) {
	js, err := nc.JetStream()
	if err != nil {
		log.Printf("sales_consumer: jetstream error: %v", err)
		return
	}

	sub, err := js.PullSubscribe("distro.purchase.completed", "catalog_sales")
	if err != nil {
		log.Printf("sales_consumer: subscribe error: %v", err)
		return
	}

	go func() {
		batchSize := envInt("WORKER_BATCH_SIZE", 100)
		batchInterval := envInt("WORKER_BATCH_INTERVAL_MS", 2000)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(batchSize, nats.MaxWait(time.Duration(batchInterval)*time.Millisecond))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				log.Printf("sales_consumer: fetch error: %v", err)
				time.Sleep(1 * time.Second)
				continue
			}
			if len(msgs) == 0 {
				continue
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				log.Printf("sales_consumer: db begin: %v", err)
				nakAll(msgs)
				continue
			}

			failed := false
			for _, m := range msgs {
				var ev PurchaseCompletedEvent
				if err := json.Unmarshal(m.Data, &ev); err != nil {
					log.Printf("sales_consumer: invalid json: %v", err)
					failed = true
					break
				}
				if ev.EventID == "" || ev.AlbumID == "" {
					// Malformed; ack via commit path rather than redeliver forever.
					log.Printf("sales_consumer: event missing ids, skipping")
					continue
				}

				ct, err := tx.Exec(ctx, `
INSERT INTO processed_events (event_id, subject, created_at, payload)
VALUES ($1,$2,$3,$4)
ON CONFLICT (event_id) DO NOTHING`,
					ev.EventID, "distro.purchase.completed", ev.OccurredAt, m.Data)
				if err != nil {
					log.Printf("sales_consumer: insert processed_events error: %v", err)
					failed = true
					break
				}
				if ct.RowsAffected() == 0 {
					// already processed; skip
					continue
				}

				if _, err := tx.Exec(ctx, `
UPDATE albums SET sales_count = sales_count + 1, updated_at=now()
WHERE id=$1`, ev.AlbumID); err != nil {
					log.Printf("sales_consumer: counter update failed: %v", err)
					failed = true
					break
				}
			}

			if failed {
				_ = tx.Rollback(ctx)
				nakAll(msgs)
				continue
			}

			if err := tx.Commit(ctx); err != nil {
				log.Printf("sales_consumer: commit failed: %v", err)
				nakAll(msgs)
				continue
			}

			for _, m := range msgs {
				if err := m.Ack(); err != nil {
					log.Printf("sales_consumer: ack error: %v", err)
				}
			}
		}
	}()
}

func nakAll(msgs []*nats.Msg) {
	for _, m := range msgs {
		if err := m.Nak(); err != nil {
			log.Printf("sales_consumer: nak error: %v", err)
		}
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
