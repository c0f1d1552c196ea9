// Package session provides Redis-backed storage for editor sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ghostwriter/api/internal/editor"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound reports a session id with no live record.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL is how long an editor session survives without activity.
const DefaultTTL = 12 * time.Hour

// snapshotTTL bounds how long a cached selection snapshot is served.
const snapshotTTL = 5 * time.Minute

// Data is the per-session record. Backend names the control substrate
// the session was opened against ("inprocess" or "iframe").
type Data struct {
	DocumentID string    `json:"document_id"`
	Backend    string    `json:"backend"`
	CreatedAt  time.Time `json:"created_at"`
}

// RedisStore keeps editor sessions and their last selection snapshots
// in Redis with sliding expirations.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: DefaultTTL}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: DefaultTTL}
}

func (s *RedisStore) sessionKey(id string) string {
	return "session:" + id
}

func (s *RedisStore) snapshotKey(id string) string {
	return "selection:" + id
}

// Save stores a session record with the store's TTL.
func (s *RedisStore) Save(ctx context.Context, id string, data Data) error {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}

	if err := s.client.Set(ctx, s.sessionKey(id), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup retrieves a session record and refreshes its expiration.
func (s *RedisStore) Lookup(ctx context.Context, id string) (Data, error) {
	key := s.sessionKey(id)
	jsonData, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Data{}, ErrNotFound
	}
	if err != nil {
		return Data{}, fmt.Errorf("lookup session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return Data{}, fmt.Errorf("unmarshal session data: %w", err)
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return Data{}, fmt.Errorf("refresh session ttl: %w", err)
	}
	return data, nil
}

// Delete removes a session and its cached snapshot.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.sessionKey(id), s.snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SaveSnapshot caches the latest selection snapshot for a session.
func (s *RedisStore) SaveSnapshot(ctx context.Context, id string, snap editor.SelectionSnapshot) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal selection snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.snapshotKey(id), jsonData, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save selection snapshot: %w", err)
	}
	return nil
}

// LookupSnapshot retrieves the cached selection snapshot for a session.
func (s *RedisStore) LookupSnapshot(ctx context.Context, id string) (editor.SelectionSnapshot, error) {
	jsonData, err := s.client.Get(ctx, s.snapshotKey(id)).Result()
	if err == redis.Nil {
		return editor.SelectionSnapshot{}, ErrNotFound
	}
	if err != nil {
		return editor.SelectionSnapshot{}, fmt.Errorf("lookup selection snapshot: %w", err)
	}

	var snap editor.SelectionSnapshot
	if err := json.Unmarshal([]byte(jsonData), &snap); err != nil {
		return editor.SelectionSnapshot{}, fmt.Errorf("unmarshal selection snapshot: %w", err)
	}
	return snap, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
