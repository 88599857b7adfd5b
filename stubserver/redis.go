package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storyforge/types"
)

const (
	jobKeyPrefix   = "storyforge:job:"
	storyKeyPrefix = "storyforge:story:"
	userStoriesKey = "storyforge:user:%s:stories"
	jobIndexKey    = "storyforge:jobs"
)

// RedisStore persists records as JSON values in Redis. Job keys carry the
// draft TTL so abandoned drafts expire server-side even without the sweeper.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, draftTTL time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: draftTTL}, nil
}

func (r *RedisStore) SaveJob(ctx context.Context, rec *JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	ttl := r.ttl
	if rec.Finalized {
		// Finalized jobs are kept briefly for the final poll cycle only.
		ttl = time.Hour
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+rec.Job.JobID, data, ttl)
	pipe.SAdd(ctx, jobIndexKey, rec.Job.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", rec.Job.JobID, err)
	}
	return nil
}

func (r *RedisStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	data, err := r.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &rec, nil
}

func (r *RedisStore) DeleteJob(ctx context.Context, jobID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, jobKeyPrefix+jobID)
	pipe.SRem(ctx, jobIndexKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

func (r *RedisStore) JobIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return ids, nil
}

func (r *RedisStore) SaveStory(ctx context.Context, rec *StoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal story record: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, storyKeyPrefix+rec.Story.ID, data, 0)
	pipe.SAdd(ctx, fmt.Sprintf(userStoriesKey, rec.UserID), rec.Story.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save story %s: %w", rec.Story.ID, err)
	}
	return nil
}

func (r *RedisStore) GetStory(ctx context.Context, storyID string) (*StoryRecord, error) {
	data, err := r.client.Get(ctx, storyKeyPrefix+storyID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", storyID, err)
	}
	var rec StoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", storyID, err)
	}
	return &rec, nil
}

func (r *RedisStore) ListStories(ctx context.Context, userID string) ([]types.Story, error) {
	ids, err := r.client.SMembers(ctx, fmt.Sprintf(userStoriesKey, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list stories for %s: %w", userID, err)
	}
	var out []types.Story
	for _, id := range ids {
		rec, err := r.GetStory(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec.Story)
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
