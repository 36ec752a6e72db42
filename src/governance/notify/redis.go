package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream member notifications are appended to.
const DefaultStream = "bandgov.notifications"

// RedisNotifier appends each notification to a Redis stream for the
// delivery workers (in-app inbox, email) to consume.
type RedisNotifier struct {
	rdb    *redis.Client
	stream string
	now    func() time.Time
}

// NewRedisNotifier writes to stream, or DefaultStream when empty.
func NewRedisNotifier(rdb *redis.Client, stream string) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisNotifier{rdb: rdb, stream: stream, now: time.Now}
}

func (r *RedisNotifier) Notify(ctx context.Context, userID uint64, n Notification) error {
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"id":         uuid.NewString(),
			"user_id":    strconv.FormatUint(userID, 10),
			"type":       string(n.Type),
			"title":      n.Title,
			"message":    n.Message,
			"action_url": n.ActionURL,
			"priority":   string(n.Priority),
			"time":       r.now().Unix(),
		},
	}).Result()
	return err
}
