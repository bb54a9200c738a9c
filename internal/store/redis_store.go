package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/dedup"
	"github.com/SWAYAM31220/lootspy/internal/id"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rows outlive their bucket by this much before Redis expires them.
const redisRetention = 24 * time.Hour

// KEYS[1] claim key, KEYS[2] row key.
// ARGV: id, dedup key, bucket, display name, origin tag, created_at, expire-at (unix seconds).
var reserveScript = redis.NewScript(`
if redis.call('set', KEYS[1], ARGV[1], 'NX') then
  redis.call('hset', KEYS[2], 'claim', KEYS[1], 'key', ARGV[2], 'bucket', ARGV[3], 'display_name', ARGV[4], 'origin_tag', ARGV[5], 'created_at', ARGV[6])
  redis.call('expireat', KEYS[1], ARGV[7])
  redis.call('expireat', KEYS[2], ARGV[7])
  return 1
end
return 0
`)

// KEYS[1] row key, ARGV[1] id. The claim is only dropped while it still points at this id.
var releaseScript = redis.NewScript(`
local claim = redis.call('hget', KEYS[1], 'claim')
if claim then
  if redis.call('get', claim) == ARGV[1] then
    redis.call('del', claim)
  end
  redis.call('del', KEYS[1])
  return 1
end
return 0
`)

type RedisStore struct {
	client redis.UniversalClient
	ids    *id.Node
	prefix string
	logger *log.Logger
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ids *id.Node, logger *log.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ids:    ids,
		prefix: "lootspy:reservation",
		logger: logger.Named("redis_store"),
		now:    time.Now,
	}
}

func (s *RedisStore) claimKey(key dedup.Key, bucket dedup.Bucket) string {
	return fmt.Sprintf("%s:claim:%s:%s", s.prefix, bucket, key)
}

func (s *RedisStore) rowKey(rowID int64) string {
	return fmt.Sprintf("%s:row:%d", s.prefix, rowID)
}

func (s *RedisStore) TryReserve(ctx context.Context, claim Claim) (ReserveResult, error) {
	end, err := claim.Bucket.End()
	if err != nil {
		return ReserveResult{}, fmt.Errorf("bucket %q: %w", claim.Bucket, err)
	}
	rowID := s.ids.Next()
	ok, err := reserveScript.Run(ctx, s.client,
		[]string{s.claimKey(claim.Key, claim.Bucket), s.rowKey(rowID)},
		rowID, string(claim.Key), string(claim.Bucket), claim.DisplayName, claim.OriginTag,
		s.now().UTC().Format(time.RFC3339Nano), end.Add(redisRetention).Unix(),
	).Int()
	if err != nil {
		return ReserveResult{}, fmt.Errorf("reserve in redis: %w", err)
	}
	if ok == 0 {
		return Duplicate(), nil
	}
	return Reserved(rowID), nil
}

func (s *RedisStore) Release(ctx context.Context, rowID int64) error {
	n, err := releaseScript.Run(ctx, s.client, []string{s.rowKey(rowID)}, strconv.FormatInt(rowID, 10)).Int()
	if err != nil {
		return fmt.Errorf("release in redis: %w", err)
	}
	if n == 0 {
		s.logger.Debug("Release found no row", zap.Int64("row_id", rowID))
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, key dedup.Key, bucket dedup.Bucket) (*Reservation, error) {
	raw, err := s.client.Get(ctx, s.claimKey(key, bucket)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	rowID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse claim id %q: %w", raw, err)
	}
	fields, err := s.client.HGetAll(ctx, s.rowKey(rowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get row: %w", err)
	}
	r := &Reservation{
		ID:          rowID,
		Key:         key,
		Bucket:      bucket,
		DisplayName: fields["display_name"],
		OriginTag:   fields["origin_tag"],
	}
	if ts := fields["created_at"]; ts != "" {
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
	}
	return r, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
