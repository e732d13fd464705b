package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/recurrence"
)

// ErrNotFound is returned when a schedule id has no record
var ErrNotFound = errors.New("schedule not found")

// recentPostLimit caps how many generated posts are kept per schedule
const recentPostLimit = 50

// RedisStore persists schedules and generated posts in Redis
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	// Pre-computed keys for the set/zset indexes
	activeSetKey string
	dueSetKey    string
	log          logger.Logger
}

// NewRedisStore creates a new Redis store and tests the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := "cadence:"
	return &RedisStore{
		client:       client,
		keyPrefix:    prefix,
		activeSetKey: prefix + "schedules:active",
		dueSetKey:    prefix + "schedules:due",
		log:          logger.Default().WithComponent(logger.ComponentStore),
	}, nil
}

// scheduleKey returns the hash key for a schedule record
func (rs *RedisStore) scheduleKey(id string) string {
	return rs.keyPrefix + "schedule:" + id
}

// postsKey returns the list key holding a schedule's generated posts
func (rs *RedisStore) postsKey(scheduleID string) string {
	return rs.keyPrefix + "posts:" + scheduleID
}

// Create persists a new schedule, rejecting duplicate ids
func (rs *RedisStore) Create(ctx context.Context, s *Schedule) error {
	exists, err := rs.client.Exists(ctx, rs.scheduleKey(s.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check schedule existence: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("schedule %s already exists", s.ID)
	}
	return rs.save(ctx, s)
}

// Update rewrites an existing schedule
func (rs *RedisStore) Update(ctx context.Context, s *Schedule) error {
	exists, err := rs.client.Exists(ctx, rs.scheduleKey(s.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check schedule existence: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	return rs.save(ctx, s)
}

// save writes the record hash and maintains the active/due indexes
func (rs *RedisStore) save(ctx context.Context, s *Schedule) error {
	prompt, err := MarshalPromptSource(s.Prompt)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt source: %w", err)
	}

	fields := map[string]interface{}{
		"frequency":       string(s.Frequency),
		"time_of_day":     s.TimeOfDay.String(),
		"timezone":        s.Timezone,
		"mode":            string(s.Mode),
		"prompt":          string(prompt),
		"external_job_id": s.ExternalJobID,
		"active":          strconv.FormatBool(s.Active),
		"created_at":      s.CreatedAt.Format(time.RFC3339),
		"updated_at":      s.UpdatedAt.Format(time.RFC3339),
	}
	if s.NextRunAt != nil {
		fields["next_run_at"] = s.NextRunAt.Format(time.RFC3339)
	}

	pipe := rs.client.Pipeline()
	pipe.HSet(ctx, rs.scheduleKey(s.ID), fields)
	if s.NextRunAt == nil {
		pipe.HDel(ctx, rs.scheduleKey(s.ID), "next_run_at")
	}

	if s.Active {
		pipe.SAdd(ctx, rs.activeSetKey, s.ID)
	} else {
		pipe.SRem(ctx, rs.activeSetKey, s.ID)
	}

	// The due index only carries active schedules with a computed next run
	if s.Active && s.NextRunAt != nil {
		pipe.ZAdd(ctx, rs.dueSetKey, redis.Z{Score: float64(s.NextRunAt.Unix()), Member: s.ID})
	} else {
		pipe.ZRem(ctx, rs.dueSetKey, s.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// Get retrieves a schedule by id
func (rs *RedisStore) Get(ctx context.Context, id string) (*Schedule, error) {
	result, err := rs.client.HGetAll(ctx, rs.scheduleKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return rs.parse(id, result)
}

// parse rebuilds a Schedule from its Redis hash
func (rs *RedisStore) parse(id string, fields map[string]string) (*Schedule, error) {
	s := &Schedule{ID: id}

	s.Frequency = recurrence.Frequency(fields["frequency"])
	s.Timezone = fields["timezone"]
	s.Mode = Mode(fields["mode"])
	s.ExternalJobID = fields["external_job_id"]
	s.Active = fields["active"] == "true"

	if tod, err := parseTimeOfDayField(fields["time_of_day"]); err == nil {
		s.TimeOfDay = tod
	} else {
		return nil, fmt.Errorf("corrupt schedule %s: %w", id, err)
	}

	if raw := fields["prompt"]; raw != "" {
		prompt, err := UnmarshalPromptSource([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("corrupt schedule %s: %w", id, err)
		}
		s.Prompt = prompt
	}

	if v := fields["next_run_at"]; v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			s.NextRunAt = &parsed
		}
	}
	if v := fields["created_at"]; v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			s.CreatedAt = parsed
		}
	}
	if v := fields["updated_at"]; v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			s.UpdatedAt = parsed
		}
	}

	return s, nil
}

// Delete removes a schedule and its indexes. Generated posts are kept.
func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := rs.client.Pipeline()
	del := pipe.Del(ctx, rs.scheduleKey(id))
	pipe.SRem(ctx, rs.activeSetKey, id)
	pipe.ZRem(ctx, rs.dueSetKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRun writes back the scheduler's results after a create/update/run
// cycle: the next computed instant and the external job handle.
func (rs *RedisStore) SetRun(ctx context.Context, id string, nextRunAt *time.Time, externalJobID string) error {
	s, err := rs.Get(ctx, id)
	if err != nil {
		return err
	}
	s.NextRunAt = nextRunAt
	s.ExternalJobID = externalJobID
	s.UpdatedAt = time.Now().UTC()
	return rs.save(ctx, s)
}

// Due returns up to limit active schedules whose next run is at or before
// now, ordered soonest first. This is the reconciliation sweep's query; it
// reads the due index directly and ignores external job state.
func (rs *RedisStore) Due(ctx context.Context, now time.Time, limit int64) ([]*Schedule, error) {
	ids, err := rs.client.ZRangeByScore(ctx, rs.dueSetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	schedules := make([]*Schedule, 0, len(ids))
	for _, id := range ids {
		s, err := rs.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Index entry outlived its record; drop it
			rs.client.ZRem(ctx, rs.dueSetKey, id)
			continue
		}
		if err != nil {
			rs.log.Warn("Skipping unreadable due schedule", "schedule_id", id, "error", err)
			continue
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// ListActive returns all active schedules
func (rs *RedisStore) ListActive(ctx context.Context) ([]*Schedule, error) {
	ids, err := rs.client.SMembers(ctx, rs.activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}

	schedules := make([]*Schedule, 0, len(ids))
	for _, id := range ids {
		s, err := rs.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			rs.client.SRem(ctx, rs.activeSetKey, id)
			continue
		}
		if err != nil {
			rs.log.Warn("Skipping unreadable active schedule", "schedule_id", id, "error", err)
			continue
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// SavePost stores a generated post, keeping only the most recent entries
func (rs *RedisStore) SavePost(ctx context.Context, p *Post) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}

	pipe := rs.client.Pipeline()
	pipe.LPush(ctx, rs.postsKey(p.ScheduleID), data)
	pipe.LTrim(ctx, rs.postsKey(p.ScheduleID), 0, recentPostLimit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}

// RecentPosts returns the newest posts for a schedule, newest first
func (rs *RedisStore) RecentPosts(ctx context.Context, scheduleID string, n int64) ([]*Post, error) {
	if n <= 0 || n > recentPostLimit {
		n = recentPostLimit
	}

	items, err := rs.client.LRange(ctx, rs.postsKey(scheduleID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	posts := make([]*Post, 0, len(items))
	for _, item := range items {
		var p Post
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			rs.log.Warn("Skipping unreadable post", "schedule_id", scheduleID, "error", err)
			continue
		}
		posts = append(posts, &p)
	}
	return posts, nil
}

// Client exposes the underlying Redis client for lock acquisition
func (rs *RedisStore) Client() *redis.Client {
	return rs.client
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// parseTimeOfDayField parses the stored "HH:MM" field
func parseTimeOfDayField(s string) (recurrence.TimeOfDay, error) {
	if s == "" {
		return recurrence.TimeOfDay{}, fmt.Errorf("missing time of day")
	}
	return recurrence.ParseTimeOfDay(s)
}
