// README: Publisher backends for the notification fabric.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
	"github.com/redis/go-redis/v9"

	"homeserve/internal/logger"
)

// Publisher delivers one event to one channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, e Event) error
}

// RedisPublisher publishes JSON payloads with Redis PUBLISH.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(channel string) string {
	if p.prefix == "" {
		return channel
	}
	return p.prefix + ":" + channel
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(channel), payload).Err()
}

// MessageSender is the subset of the FCM client used here.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPublisher sends each event as a data message to a topic named after the channel.
type FCMPublisher struct {
	client MessageSender
}

func NewFCMPublisher(client MessageSender) *FCMPublisher {
	return &FCMPublisher{client: client}
}

// Topic maps a channel to a valid FCM topic name.
func Topic(channel string) string {
	return strings.NewReplacer(":", "_", " ", "_").Replace(channel)
}

func (p *FCMPublisher) Publish(ctx context.Context, channel string, e Event) error {
	data := map[string]string{
		"id":          e.ID,
		"type":        string(e.Type),
		"occurred_at": e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if e.BookingID != "" {
		data["booking_id"] = string(e.BookingID)
	}
	if e.ProviderID != "" {
		data["provider_id"] = string(e.ProviderID)
	}
	if e.CustomerID != "" {
		data["customer_id"] = string(e.CustomerID)
	}
	if e.DaysLeft != 0 {
		data["days_left"] = fmt.Sprint(e.DaysLeft)
	}
	_, err := p.client.Send(ctx, &messaging.Message{Topic: Topic(channel), Data: data})
	return err
}

// MultiPublisher forwards to every publisher and joins their errors.
type MultiPublisher struct {
	Publishers []Publisher
}

func NewMultiPublisher(pubs ...Publisher) *MultiPublisher {
	return &MultiPublisher{Publishers: pubs}
}

func (m *MultiPublisher) Publish(ctx context.Context, channel string, e Event) error {
	var errs []error
	for _, p := range m.Publishers {
		if err := p.Publish(ctx, channel, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher only logs. Used when no fabric is configured.
type LogPublisher struct {
	log logger.Logger
}

func NewLogPublisher(log logger.Logger) *LogPublisher {
	return &LogPublisher{log: logger.OrNop(log)}
}

func (p *LogPublisher) Publish(_ context.Context, channel string, e Event) error {
	p.log.Debugw("notification", map[string]any{
		"channel":     channel,
		"type":        string(e.Type),
		"booking_id":  string(e.BookingID),
		"provider_id": string(e.ProviderID),
	})
	return nil
}
