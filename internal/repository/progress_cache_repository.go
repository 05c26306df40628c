package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/somosuni/lms-backend/internal/config"
)

var (
	// ErrCacheMiss is returned by ProgressCacheRepository.Get when nothing is cached.
	ErrCacheMiss = errors.New("progress cache miss")
	// ErrStaleGeneration is returned by Set when the view was computed before an invalidation.
	ErrStaleGeneration = errors.New("progress cache generation changed")
)

// CacheGeneration is the invalidation epoch a view was computed in.
type CacheGeneration struct {
	Student int64
	Global  int64
}

// setIfCurrent writes a view only while both generation counters still hold
// the values read before it was computed.
//
// KEYS: student generation, global generation, view key, index key
// ARGV: student generation, global generation, payload, ttl in ms
var setIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then return 0 end
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[2] then return 0 end
redis.call('SET', KEYS[3], ARGV[3], 'PX', ARGV[4])
redis.call('SADD', KEYS[4], KEYS[3])
redis.call('PEXPIRE', KEYS[4], ARGV[4])
return 1
`)

// ProgressCacheRepository stores rendered progress views in Redis as JSON.
// Every key written for a student is also added to that student's index set
// so a single new attempt can drop all of them at once.
type ProgressCacheRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProgressCacheRepository creates a cache with the given TTL. A zero TTL disables caching.
func NewProgressCacheRepository(rdb *redis.Client, ttl time.Duration) *ProgressCacheRepository {
	return &ProgressCacheRepository{rdb: rdb, ttl: ttl}
}

// Get decodes the cached value at key into dst.
func (r *ProgressCacheRepository) Get(ctx context.Context, key string, dst interface{}) error {
	if r.ttl <= 0 {
		return ErrCacheMiss
	}
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Generation reads the counters a later Set must still observe.
func (r *ProgressCacheRepository) Generation(ctx context.Context, studentID int) (CacheGeneration, error) {
	if r.ttl <= 0 {
		return CacheGeneration{}, nil
	}
	vals, err := r.rdb.MGet(ctx,
		config.CacheKey.ProgressGenerationKey(studentID),
		config.CacheKey.GlobalProgressGenerationKey(),
	).Result()
	if err != nil {
		return CacheGeneration{}, err
	}

	var gen CacheGeneration
	if gen.Student, err = parseCounter(vals[0]); err != nil {
		return CacheGeneration{}, err
	}
	if gen.Global, err = parseCounter(vals[1]); err != nil {
		return CacheGeneration{}, err
	}
	return gen, nil
}

// Set stores v under key and registers the key in the student's index.
// It returns ErrStaleGeneration and stores nothing when the student or the
// whole cache was invalidated after gen was read.
func (r *ProgressCacheRepository) Set(ctx context.Context, studentID int, gen CacheGeneration, key string, v interface{}) error {
	if r.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	keys := []string{
		config.CacheKey.ProgressGenerationKey(studentID),
		config.CacheKey.GlobalProgressGenerationKey(),
		key,
		config.CacheKey.ProgressIndexKey(studentID),
	}
	stored, err := setIfCurrent.Run(ctx, r.rdb, keys,
		strconv.FormatInt(gen.Student, 10),
		strconv.FormatInt(gen.Global, 10),
		raw,
		r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if stored == 0 {
		return ErrStaleGeneration
	}
	return nil
}

// InvalidateStudent removes every cached progress view of the student.
// The generation bump comes first so an in-flight computation cannot write back afterwards.
func (r *ProgressCacheRepository) InvalidateStudent(ctx context.Context, studentID int) error {
	if err := r.rdb.Incr(ctx, config.CacheKey.ProgressGenerationKey(studentID)).Err(); err != nil {
		return err
	}
	indexKey := config.CacheKey.ProgressIndexKey(studentID)
	keys, err := r.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	keys = append(keys, indexKey)
	return r.rdb.Del(ctx, keys...).Err()
}

// InvalidateAll drops the cached views of every student. Catalog edits call
// it because a changed outline affects all rendered progress.
func (r *ProgressCacheRepository) InvalidateAll(ctx context.Context) error {
	if err := r.rdb.Incr(ctx, config.CacheKey.GlobalProgressGenerationKey()).Err(); err != nil {
		return err
	}
	iter := r.rdb.Scan(ctx, 0, config.CacheKey.ProgressIndexPattern(), 200).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		keys, err := r.rdb.SMembers(ctx, indexKey).Result()
		if err != nil {
			return err
		}
		if err := r.rdb.Del(ctx, append(keys, indexKey)...).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func parseCounter(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
