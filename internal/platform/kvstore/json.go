package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// LoadJSON reads key and decodes it into a T. A missing key yields the zero
// value. A value that fails to decode, or that valid rejects, is logged at
// warn level and also yields the zero value, so a corrupt entry never breaks
// a read path. Backend errors are handled the same way.
func LoadJSON[T any](ctx context.Context, s Store, logger zerolog.Logger, key string, valid func(T) error) T {
	var zero T
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return zero
	}
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Str("workspace", WorkspaceFromContext(ctx)).Msg("storage read failed")
		return zero
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warn().Err(err).Str("key", key).Str("workspace", WorkspaceFromContext(ctx)).Msg("discarding unreadable entry")
		return zero
	}
	if valid != nil {
		if err := valid(v); err != nil {
			logger.Warn().Err(err).Str("key", key).Str("workspace", WorkspaceFromContext(ctx)).Msg("discarding malformed entry")
			return zero
		}
	}
	return v
}

// SaveJSON encodes v and writes it under key.
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Batch collects JSON-encoded entries for a single atomic SetMany.
type Batch map[string][]byte

// Put encodes v under key.
func (b Batch) Put(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	b[key] = raw
	return nil
}

// Commit writes every entry of the batch atomically.
func (b Batch) Commit(ctx context.Context, s Store) error {
	if len(b) == 0 {
		return nil
	}
	return s.SetMany(ctx, b)
}
