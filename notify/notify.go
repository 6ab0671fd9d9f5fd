/*
Package notify implements license.Notifier.

PURPOSE:
  Delivers lifecycle events (created, approved, rejected, expired, due
  tomorrow, due today) to whoever listens. Delivery is fire-and-forget: the
  caller logs and counts a failure, it never rolls a transition back.

IMPLEMENTATIONS:
  RedisNotifier:  PUBLISH a JSON payload on "<prefix>:<employeeID>"
  LogNotifier:    One structured log line per event
  Fanout:         Every notifier in turn, errors joined

SEE ALSO:
  - license/notifier.go: The port and the Notification payload
  - cmd/server/main.go: Wiring from REDIS_URL
*/
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/license-engine/license"
)

// DefaultChannelPrefix is used when RedisNotifier has no prefix.
const DefaultChannelPrefix = "licenses:employee"

// =============================================================================
// REDIS
// =============================================================================

// RedisNotifier publishes notifications into per-employee Redis channels.
// A nil client turns every call into a no-op.
type RedisNotifier struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisNotifier(rdb *redis.Client, prefix string) *RedisNotifier {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisNotifier{rdb: rdb, prefix: prefix}
}

// NewRedisClient parses a redis:// URL. A bare host:port is accepted too.
func NewRedisClient(url string) (*redis.Client, error) {
	if !strings.Contains(url, "://") {
		return redis.NewClient(&redis.Options{Addr: url}), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Channel returns the channel of an employee.
func (n *RedisNotifier) Channel(id license.EmployeeID) string {
	return fmt.Sprintf("%s:%s", n.prefix, id)
}

func (n *RedisNotifier) Notify(ctx context.Context, msg license.Notification) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.Channel(msg.EmployeeID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s for %s: %w", msg.Kind, msg.RequestID, err)
	}
	return nil
}

// =============================================================================
// LOG
// =============================================================================

type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, msg license.Notification) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.Info("notification",
		zap.String("employee_id", string(msg.EmployeeID)),
		zap.String("request_id", string(msg.RequestID)),
		zap.String("kind", string(msg.Kind)),
		zap.Time("at", msg.At))
	return nil
}

// =============================================================================
// FANOUT
// =============================================================================

// Fanout calls every notifier even when an earlier one fails.
type Fanout []license.Notifier

func (f Fanout) Notify(ctx context.Context, msg license.Notification) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ license.Notifier = (*RedisNotifier)(nil)
	_ license.Notifier = LogNotifier{}
	_ license.Notifier = Fanout(nil)
)
