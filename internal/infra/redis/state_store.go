package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

const stateKey = "livequiz:state"

// StateStore keeps the persisted quiz state as a JSON document under a
// single Redis key, so a standby process can reload it after a crash.
// SET replaces the whole value, which gives the atomic-save contract for
// free.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Load() (domain.PersistedState, bool, error) {
	raw, err := s.client.Get(context.Background(), stateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PersistedState{}, false, nil
	}
	if err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("load state from redis: %w", err)
	}

	var p domain.PersistedState
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("decode state from redis: %w", err)
	}
	return p, true, nil
}

func (s *StateStore) Save(p domain.PersistedState) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(context.Background(), stateKey, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save state to redis: %w", err)
	}
	return nil
}
