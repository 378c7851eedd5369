// AngelaMos | 2026
// repository.go

package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Repository interface {
	Save(ctx context.Context, code *Code, ttl time.Duration) error
	Find(ctx context.Context, accountID string, purpose Purpose) (*Code, error)
	Consume(
		ctx context.Context,
		accountID string,
		purpose Purpose,
		hash string,
		now time.Time,
		maxAttempts int,
	) error
	Release(ctx context.Context, accountID string, purpose Purpose, hash string) error
	Delete(ctx context.Context, accountID string, purpose Purpose) error
}

// consumeCodeLua checks and consumes a code record in one step.
// KEYS[1] = record key
// ARGV[1] = sha256 hex of the submitted code
// ARGV[2] = current unix millis
// ARGV[3] = max attempts
var consumeCodeLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'h', 'exp', 'used')
if not rec[1] then
  return 'missing'
end

if tonumber(ARGV[2]) > tonumber(rec[2]) then
  return 'expired'
end

if rec[3] == '1' then
  if rec[1] == ARGV[1] then
    return 'consumed'
  end
  return 'mismatch'
end

if rec[1] ~= ARGV[1] then
  local att = redis.call('HINCRBY', KEYS[1], 'att', 1)
  if att >= tonumber(ARGV[3]) then
    redis.call('DEL', KEYS[1])
    return 'burned'
  end
  return 'mismatch'
end

redis.call('HSET', KEYS[1], 'used', '1')
return 'ok'
`)

// releaseCodeLua marks a consumed code unused again, only while the record
// still holds the same hash. A reissued code is left alone.
// KEYS[1] = record key
// ARGV[1] = sha256 hex of the consumed code
var releaseCodeLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'h', 'used')
if rec[1] ~= ARGV[1] or rec[2] ~= '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'used', '0')
return 1
`)

type redisRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRepository(client redis.UniversalClient, prefix string) Repository {
	if prefix == "" {
		prefix = "vc"
	}
	return &redisRepository{client: client, prefix: prefix}
}

func (r *redisRepository) key(accountID string, purpose Purpose) string {
	return r.prefix + ":" + accountID + ":" + string(purpose)
}

// Save replaces any earlier record for the same account and purpose. ttl
// should outlive the code so late attempts still see expired or consumed.
func (r *redisRepository) Save(ctx context.Context, code *Code, ttl time.Duration) error {
	key := r.key(code.AccountID, code.Purpose)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"h", code.Hash,
			"iat", code.IssuedAt.UnixMilli(),
			"exp", code.ExpiresAt.UnixMilli(),
			"used", "0",
			"att", 0,
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save verification code: %w", err)
	}

	return nil
}

func (r *redisRepository) Find(
	ctx context.Context,
	accountID string,
	purpose Purpose,
) (*Code, error) {
	fields, err := r.client.HGetAll(ctx, r.key(accountID, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("find verification code: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("find verification code: %w", core.ErrNotFound)
	}

	iat, _ := strconv.ParseInt(fields["iat"], 10, 64) //nolint:errcheck // written by Save
	exp, _ := strconv.ParseInt(fields["exp"], 10, 64) //nolint:errcheck // written by Save
	att, _ := strconv.Atoi(fields["att"])             //nolint:errcheck // written by Save

	return &Code{
		AccountID: accountID,
		Purpose:   purpose,
		Hash:      fields["h"],
		IssuedAt:  time.UnixMilli(iat).UTC(),
		ExpiresAt: time.UnixMilli(exp).UTC(),
		Consumed:  fields["used"] == "1",
		Attempts:  att,
	}, nil
}

func (r *redisRepository) Consume(
	ctx context.Context,
	accountID string,
	purpose Purpose,
	hash string,
	now time.Time,
	maxAttempts int,
) error {
	status, err := consumeCodeLua.Run(ctx, r.client,
		[]string{r.key(accountID, purpose)},
		hash,
		now.UnixMilli(),
		maxAttempts,
	).Text()
	if err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}

	switch status {
	case "ok":
		return nil
	case "expired":
		return fmt.Errorf("consume verification code: %w", core.ErrCodeExpired)
	case "consumed":
		return fmt.Errorf("consume verification code: %w", core.ErrCodeAlreadyConsumed)
	case "missing", "mismatch", "burned":
		return fmt.Errorf("consume verification code (%s): %w", status, core.ErrCodeInvalid)
	default:
		return fmt.Errorf("consume verification code: unexpected status %q", status)
	}
}

// Release undoes a Consume whose follow-up work failed, so the same code can
// be submitted again. Returns core.ErrNotFound when the record changed.
func (r *redisRepository) Release(
	ctx context.Context,
	accountID string,
	purpose Purpose,
	hash string,
) error {
	n, err := releaseCodeLua.Run(ctx, r.client,
		[]string{r.key(accountID, purpose)},
		hash,
	).Int()
	if err != nil {
		return fmt.Errorf("release verification code: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("release verification code: %w", core.ErrNotFound)
	}

	return nil
}

func (r *redisRepository) Delete(
	ctx context.Context,
	accountID string,
	purpose Purpose,
) error {
	if err := r.client.Del(ctx, r.key(accountID, purpose)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete verification code: %w", err)
	}
	return nil
}
