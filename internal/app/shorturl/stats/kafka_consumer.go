package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

// KafkaConsumer 从 Kafka 读事件并批量写 click_events，
// 攒批策略与 Consumer 一致。
type KafkaConsumer struct {
	reader    *kafka.Reader
	db        *pgxpool.Pool
	batchSize int
	interval  time.Duration
}

func NewKafkaConsumer(brokers []string, topic string, db *pgxpool.Pool) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  "click-events-consumer",
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		db:        db,
		batchSize: 100,
		interval:  time.Second,
	}
}

func (k *KafkaConsumer) Run(ctx context.Context) {
	batch := make([]ClickEvent, 0, k.batchSize)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	// 读取放单独的协程，主循环保持非阻塞攒批
	msgCh := make(chan ClickEvent, k.batchSize)
	go func() {
		for {
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					close(msgCh)
					return
				}
				slog.Error("kafka read failed", "err", err)
				continue
			}

			var event ClickEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				slog.Error("unmarshal click event failed", "err", err)
				continue
			}
			msgCh <- event
		}
	}()

	for {
		select {
		case <-ctx.Done():
			insertEvents(k.db, batch)
			return

		case event, ok := <-msgCh:
			if !ok {
				insertEvents(k.db, batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= k.batchSize {
				insertEvents(k.db, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				insertEvents(k.db, batch)
				batch = batch[:0]
			}
		}
	}
}

func (k *KafkaConsumer) Close() {
	k.reader.Close()
}
