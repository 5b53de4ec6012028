package worker

import (
	"context"
	"encoding/json"
	"sync"

	"orientachat/internal/logger"
	"orientachat/internal/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const redisInvalidateChannel = "orientachat:visitor:invalidate"

type invalidateMessage struct {
	VisitorID string `json:"visitor_id"`
	Origin    string `json:"origin"`
}

// Invalidator tells the other instances behind the load balancer that a
// visitor was reset, so none of them keeps serving the old state.
type Invalidator struct {
	client *redis.Client
	origin string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewInvalidator(client *redis.Client) *Invalidator {
	return &Invalidator{client: client, origin: uuid.NewString()}
}

// listen starts a redis subscription. Messages published by this instance
// are skipped.
func (r *Invalidator) listen(handler func(visitorID string)) {
	if r == nil || r.client == nil || handler == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	pubsub := raw.Subscribe(ctx, redisInvalidateChannel)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					logger.Get().Warn("visitor invalidation decode failed", zap.Error(err))
					continue
				}
				if inv.Origin == r.origin || inv.VisitorID == "" {
					continue
				}
				handler(inv.VisitorID)
			}
		}
	}()
}

// publish broadcasts a reset. Failures are logged; the local reset already
// happened.
func (r *Invalidator) publish(ctx context.Context, visitorID string) {
	if r == nil || r.client == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	payload, err := json.Marshal(invalidateMessage{VisitorID: visitorID, Origin: r.origin})
	if err != nil {
		logger.Get().Error("visitor invalidation marshal failed", zap.Error(err))
		return
	}
	if err := raw.Publish(ctx, redisInvalidateChannel, payload).Err(); err != nil {
		logger.Get().Warn("visitor invalidation publish failed", zap.String("visitor_id", visitorID), zap.Error(err))
	}
}

func (r *Invalidator) stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}
