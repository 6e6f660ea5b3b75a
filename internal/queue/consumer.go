package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/attend/internal/models"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeAttendance delivers attendance events recorded from now on.
// consumerName must be unique per replica so every replica sees every event.
func (c *Consumer) ConsumeAttendance(ctx context.Context, consumerName string, handle func(context.Context, *models.AttendanceEvent) error) error {
	return c.consume(ctx, AttendanceStreamName, AttendanceSubject, consumerName, func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.AttendanceEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return fmt.Errorf("unmarshal attendance event: %w", err)
		}
		return handle(ctx, &ev)
	})
}

// ConsumeEnrollment delivers signature updates, used to invalidate the
// local signature cache.
func (c *Consumer) ConsumeEnrollment(ctx context.Context, consumerName string, handle func(context.Context, *models.EnrollmentEvent) error) error {
	return c.consume(ctx, EnrollmentStreamName, EnrollmentSubject, consumerName, func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.EnrollmentEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return fmt.Errorf("unmarshal enrollment event: %w", err)
		}
		return handle(ctx, &ev)
	})
}

func (c *Consumer) consume(ctx context.Context, streamName, subject, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", streamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              consumerName,
		Durable:           consumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           10 * time.Second,
		MaxDeliver:        3,
		FilterSubject:     subject,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch events error", "stream", streamName, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process event error", "stream", streamName, "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("event consumer started", "stream", streamName, "consumer", consumerName)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
