package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisProvisionScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
  redis.call("HSET", key, "current", ARGV[1], "purchased", 0, "updated_at", ARGV[2])
end
return redis.call("HMGET", key, "current", "purchased", "updated_at")
`)

var redisDebitScript = redis.NewScript(`
local key = KEYS[1]
local amount = tonumber(ARGV[1])
local current = tonumber(redis.call("HGET", key, "current"))
if current == nil then
  return {"absent", 0}
end
if current < amount then
  return {"insufficient", current}
end
current = redis.call("HINCRBY", key, "current", -amount)
redis.call("HSET", key, "updated_at", ARGV[2])
return {"ok", current}
`)

var redisCreditScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
  return nil
end
redis.call("HINCRBY", key, "current", ARGV[1])
redis.call("HINCRBY", key, "purchased", ARGV[1])
redis.call("HSET", key, "updated_at", ARGV[2])
return redis.call("HMGET", key, "current", "purchased", "updated_at")
`)

// RedisStore keeps one hash per user. Debits run as a Lua script so the floor check and the
// decrement happen in a single server-side step.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore builds a store using keys of the form "<prefix>:<userID>".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "credits"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID)
}

// ReadBalance implements Store.
func (s *RedisStore) ReadBalance(ctx context.Context, userID string) (Balance, bool, error) {
	if s.client == nil {
		return Balance{}, false, errors.New("redis client is nil")
	}
	values, err := s.client.HMGet(ctx, s.key(userID), "current", "purchased", "updated_at").Result()
	if err != nil {
		return Balance{}, false, err
	}
	if len(values) == 0 || values[0] == nil {
		return Balance{}, false, nil
	}
	balance, err := parseRedisBalance(userID, values)
	if err != nil {
		return Balance{}, false, err
	}
	return balance, true, nil
}

// Provision implements Store.
func (s *RedisStore) Provision(ctx context.Context, userID string, credits int) (Balance, error) {
	if s.client == nil {
		return Balance{}, errors.New("redis client is nil")
	}
	raw, err := redisProvisionScript.Run(ctx, s.client, []string{s.key(userID)}, credits, s.now().UTC().UnixMilli()).Result()
	if err != nil {
		return Balance{}, err
	}
	values, ok := raw.([]interface{})
	if !ok {
		return Balance{}, fmt.Errorf("unexpected redis provision result type %T", raw)
	}
	return parseRedisBalance(userID, values)
}

// AtomicDebit implements Store.
func (s *RedisStore) AtomicDebit(ctx context.Context, userID string, amount int, _ string) (int, bool, error) {
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}
	if s.client == nil {
		return 0, false, errors.New("redis client is nil")
	}
	raw, err := redisDebitScript.Run(ctx, s.client, []string{s.key(userID)}, amount, s.now().UTC().UnixMilli()).Result()
	if err != nil {
		return 0, false, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, false, fmt.Errorf("unexpected redis debit result %v", raw)
	}
	balance, err := parseRedisInt(values[1])
	if err != nil {
		return 0, false, fmt.Errorf("parse debit balance: %w", err)
	}
	switch state := asString(values[0]); state {
	case "ok":
		return balance, true, nil
	case "insufficient":
		return balance, false, nil
	case "absent":
		return 0, false, ErrAccountNotFound
	default:
		return 0, false, fmt.Errorf("unknown debit state %q", state)
	}
}

// Credit implements Store.
func (s *RedisStore) Credit(ctx context.Context, userID string, amount int, _ string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	if s.client == nil {
		return Balance{}, errors.New("redis client is nil")
	}
	raw, err := redisCreditScript.Run(ctx, s.client, []string{s.key(userID)}, amount, s.now().UTC().UnixMilli()).Result()
	if errors.Is(err, redis.Nil) {
		return Balance{}, ErrAccountNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	values, ok := raw.([]interface{})
	if !ok {
		return Balance{}, fmt.Errorf("unexpected redis credit result type %T", raw)
	}
	return parseRedisBalance(userID, values)
}

func parseRedisBalance(userID string, values []interface{}) (Balance, error) {
	if len(values) != 3 {
		return Balance{}, fmt.Errorf("unexpected redis balance payload %v", values)
	}
	current, err := parseRedisInt(values[0])
	if err != nil {
		return Balance{}, fmt.Errorf("parse current credits: %w", err)
	}
	purchased, err := parseRedisInt(values[1])
	if err != nil {
		return Balance{}, fmt.Errorf("parse purchased credits: %w", err)
	}
	updatedMs, err := parseRedisInt(values[2])
	if err != nil {
		return Balance{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return Balance{
		UserID:                userID,
		CurrentCredits:        current,
		TotalPurchasedCredits: purchased,
		UpdatedAt:             time.UnixMilli(int64(updatedMs)).UTC(),
	}, nil
}

func parseRedisInt(v interface{}) (int, error) {
	switch typed := v.(type) {
	case int64:
		return int(typed), nil
	case int:
		return typed, nil
	case string:
		return strconv.Atoi(typed)
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func asString(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(v)
	}
}
