package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	fieldID         = "id"
	fieldUserID     = "user_id"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldRevokedAt  = "revoked_at"
	fieldReplacedBy = "replaced_by"
)

// KEYS[1] record; ARGV id, user_id, created_at, expires_at.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'user_id', ARGV[2], 'created_at', ARGV[3], 'expires_at', ARGV[4])
return 1
`)

// KEYS[1] record; ARGV now (ms). Returns -1 missing, 0 already revoked, 1 revoked.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'revoked_at') then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[1])
return 1
`)

// KEYS[1] old record, KEYS[2] successor.
// ARGV user_id, now, successor hash, successor id, created_at, expires_at.
// Returns 1 rotated, 0 inactive, -1 successor exists.
var rotateScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'user_id', 'expires_at', 'revoked_at')
if not f[1] or f[1] ~= ARGV[1] then
  return 0
end
if f[3] then
  return 0
end
if tonumber(f[2]) < tonumber(ARGV[2]) then
  return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return -1
end
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[2], 'replaced_by', ARGV[3])
redis.call('HSET', KEYS[2], 'id', ARGV[4], 'user_id', ARGV[1], 'created_at', ARGV[5], 'expires_at', ARGV[6])
return 1
`)

// RedisStore keeps each record as a hash under prefix+token_hash. Times are
// stored as Unix milliseconds. Keys carry no expiry: expired, revoked and
// rotated records stay readable like rows in the SQL store. Rotation touches two keys in one script, so
// a cluster deployment needs both keys in the same slot.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the "rt:" key prefix.
func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStore) { s.prefix = p }
}

// NewRedisStore returns a store backed by rdb.
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "rt:"}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisStore) key(hash string) string { return s.prefix + hash }

func (s *RedisStore) Save(ctx context.Context, token *models.RefreshToken) error {
	res, err := saveScript.Run(ctx, s.rdb, []string{s.key(token.TokenHash)},
		token.ID, token.UserID, token.CreatedAt.UnixMilli(), token.ExpiresAt.UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if res == 0 {
		return common.ErrConflict
	}
	return nil
}

func (s *RedisStore) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(m) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeRecord(tokenHash, m)
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := revokeScript.Run(ctx, s.rdb, []string{s.key(tokenHash)}, now.UnixMilli()).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if res < 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (s *RedisStore) Rotate(ctx context.Context, oldHash string, successor *models.RefreshToken, now time.Time) error {
	keys := []string{s.key(oldHash), s.key(successor.TokenHash)}
	res, err := rotateScript.Run(ctx, s.rdb, keys,
		successor.UserID,
		now.UnixMilli(),
		successor.TokenHash,
		successor.ID,
		successor.CreatedAt.UnixMilli(),
		successor.ExpiresAt.UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if res != 1 {
		return ErrInactive
	}
	return nil
}

func decodeRecord(hash string, m map[string]string) (*models.RefreshToken, error) {
	t := &models.RefreshToken{
		ID:        m[fieldID],
		UserID:    m[fieldUserID],
		TokenHash: hash,
	}

	var err error
	if t.CreatedAt, err = parseMillis(m[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("redis record %s: %w", fieldCreatedAt, err)
	}
	if t.ExpiresAt, err = parseMillis(m[fieldExpiresAt]); err != nil {
		return nil, fmt.Errorf("redis record %s: %w", fieldExpiresAt, err)
	}
	if v, ok := m[fieldRevokedAt]; ok {
		at, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("redis record %s: %w", fieldRevokedAt, err)
		}
		t.RevokedAt = &at
	}
	if v, ok := m[fieldReplacedBy]; ok {
		t.ReplacedByTokenHash = &v
	}
	if t.ID == "" || t.UserID == "" {
		return nil, errors.New("redis record: missing id or user_id")
	}
	return t, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
