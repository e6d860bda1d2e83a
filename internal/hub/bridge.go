package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"libra-pay/internal/domain"
)

// statusChannel is the redis pub/sub channel carrying status changes between
// API instances.
const statusChannel = ChannelName + ":status"

// StatusPublisher is what the payment service and the expiry sweeper use to
// announce a status change without knowing about sockets.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, userID uuid.UUID, status domain.TransactionStatus) error
}

type statusEnvelope struct {
	UserID uuid.UUID                `json:"user_id"`
	Status domain.TransactionStatus `json:"status"`
}

// Bridge fans status changes out through redis so a user connected to one API
// instance still hears about a gateway callback handled by another.
type Bridge struct {
	rdb    *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewBridge(rdb *redis.Client, h *Hub, logger *zap.Logger) *Bridge {
	return &Bridge{rdb: rdb, hub: h, logger: logger}
}

func (b *Bridge) PublishStatus(ctx context.Context, userID uuid.UUID, status domain.TransactionStatus) error {
	payload, err := json.Marshal(statusEnvelope{UserID: userID, Status: status})
	if err != nil {
		return fmt.Errorf("marshal status envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, statusChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// Run relays redis messages into the local hub until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, statusChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env statusEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("bad status envelope", zap.Error(err))
				continue
			}
			b.hub.Publish(env.UserID, env.Status)
		}
	}
}

// LocalPublisher delivers straight to an in-process hub. Used by cmd/simulate
// and tests, where there is no redis between producer and socket.
type LocalPublisher struct {
	Hub *Hub
}

func (p LocalPublisher) PublishStatus(_ context.Context, userID uuid.UUID, status domain.TransactionStatus) error {
	p.Hub.Publish(userID, status)
	return nil
}
