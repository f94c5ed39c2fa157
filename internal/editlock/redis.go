package editlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jun/gophdocs/backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each lock in a hash (holder_id, acquired_at) whose key
// expires with the lock window. Claim and Release run as Lua scripts.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix defaults to "gophdocs:editlock".
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "gophdocs:editlock"
	}
	return &RedisStore{
		client: client,
		prefix: normalized,
	}
}

func (s *RedisStore) lockKey(docID string) string {
	return s.prefix + ":doc:" + docID
}

func (s *RedisStore) Get(ctx context.Context, docID string) (*model.DocumentLock, error) {
	fields, err := s.client.HGetAll(ctx, s.lockKey(docID)).Result()
	if err != nil {
		return nil, fmt.Errorf("edit lock get: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	acquired, err := strconv.ParseInt(fields["acquired_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("edit lock get: bad acquired_at %q: %w", fields["acquired_at"], err)
	}
	return &model.DocumentLock{
		DocID:      docID,
		HolderID:   fields["holder_id"],
		AcquiredAt: acquired,
	}, nil
}

func (s *RedisStore) Claim(ctx context.Context, docID, actorID string, now time.Time, window time.Duration) (*model.DocumentLock, bool, error) {
	res, err := claimLockScript.Run(ctx, s.client, []string{s.lockKey(docID)},
		actorID,
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("edit lock claim: %w", err)
	}
	if len(res) != 3 {
		return nil, false, fmt.Errorf("edit lock claim: unexpected reply %v", res)
	}

	claimed, _ := res[0].(int64)
	holder, _ := res[1].(string)
	acquiredRaw, _ := res[2].(string)
	acquired, err := strconv.ParseInt(acquiredRaw, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("edit lock claim: bad acquired_at %q: %w", acquiredRaw, err)
	}

	return &model.DocumentLock{
		DocID:      docID,
		HolderID:   holder,
		AcquiredAt: acquired,
	}, claimed == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, docID, actorID string) (bool, error) {
	released, err := releaseLockScript.Run(ctx, s.client, []string{s.lockKey(docID)}, actorID).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("edit lock release: %w", err)
	}
	return released == 1, nil
}

func (s *RedisStore) Clear(ctx context.Context, docID string) error {
	if err := s.client.Del(ctx, s.lockKey(docID)).Err(); err != nil {
		return fmt.Errorf("edit lock clear: %w", err)
	}
	return nil
}

// ARGV: actor, now_ms, cutoff_ms, window_ms
var claimLockScript = redis.NewScript(`
local holder = redis.call("HGET", KEYS[1], "holder_id")
local acquired = redis.call("HGET", KEYS[1], "acquired_at") or "0"
if holder and holder ~= "" and holder ~= ARGV[1] and tonumber(acquired) > tonumber(ARGV[3]) then
  return {0, holder, acquired}
end
redis.call("HSET", KEYS[1], "holder_id", ARGV[1], "acquired_at", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {1, ARGV[1], ARGV[2]}
`)

var releaseLockScript = redis.NewScript(`
local holder = redis.call("HGET", KEYS[1], "holder_id")
if holder and holder == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
