package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/careportal-chat/internal/booking"
)

const (
	snapshotKeyPrefix  = "careportal:snapshot:"
	DefaultSnapshotTTL = 24 * time.Hour
)

// ErrNoSnapshot is returned when no snapshot exists for a conversation.
var ErrNoSnapshot = errors.New("chat: no snapshot")

// SnapshotStore keeps the last message list seen for a conversation so the
// client can resume when the portal is unreachable.
type SnapshotStore interface {
	Save(ctx context.Context, conversationID string, messages []booking.Message) error
	Load(ctx context.Context, conversationID string) ([]booking.Message, error)
}

type snapshot struct {
	Messages []booking.Message `json:"messages"`
	SavedAt  time.Time         `json:"saved_at"`
}

// RedisSnapshotStore is a SnapshotStore backed by one Redis string per
// conversation.
type RedisSnapshotStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisSnapshotStore returns nil when redisClient is nil; a nil store
// saves nothing and loads ErrNoSnapshot.
func NewRedisSnapshotStore(redisClient *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisSnapshotStore{
		redis:  redisClient,
		tracer: otel.Tracer("careportal.chat.snapshot"),
		ttl:    ttl,
	}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, conversationID string, messages []booking.Message) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if conversationID == "" {
		return errors.New("chat: snapshot conversationID required")
	}

	ctx, span := s.tracer.Start(ctx, "chat.snapshot.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("careportal.conversation_id", conversationID),
		attribute.Int("careportal.messages", len(messages)),
	)

	data, err := json.Marshal(snapshot{Messages: messages, SavedAt: time.Now().UTC()})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: marshal snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, snapshotKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: save snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, conversationID string) ([]booking.Message, error) {
	if s == nil || s.redis == nil {
		return nil, ErrNoSnapshot
	}

	ctx, span := s.tracer.Start(ctx, "chat.snapshot.load")
	defer span.End()
	span.SetAttributes(attribute.String("careportal.conversation_id", conversationID))

	data, err := s.redis.Get(ctx, snapshotKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: load snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: decode snapshot: %w", err)
	}
	return snap.Messages, nil
}

func snapshotKey(conversationID string) string {
	return snapshotKeyPrefix + conversationID
}
