// Package schedule resolves a facility's calendar rules into bookable slots.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clubsched/internal/db"
	"clubsched/internal/model"
)

// ConfigError marks fatal facility configuration problems, such as an
// incomplete weekday rule set. It is surfaced to an operator, not retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "schedule config: " + e.Reason
}

// DayHours is the effective open interval for one date.
// A closed date is a normal outcome, not an error.
type DayHours struct {
	Closed    bool   `json:"closed"`
	OpenTime  string `json:"open_time,omitempty"`
	CloseTime string `json:"close_time,omitempty"`
}

// RuleSource reads calendar rules from storage.
type RuleSource interface {
	GetWeekdayRules(ctx context.Context) ([]model.WeekdayRule, error)
	GetOverride(ctx context.Context, day string) (*model.DateOverride, error)
}

// Store resolves effective hours per date, override first, weekday rule
// second. Rules are read-mostly, so lookups go through an optional redis
// cache with a short TTL; a slightly stale read is acceptable.
type Store struct {
	source RuleSource
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewStore creates a rule store without caching.
func NewStore(source RuleSource, logger *zerolog.Logger) *Store {
	return &Store{source: source, logger: logger}
}

// UseRedisCache configures read-through caching of effective hours.
func (s *Store) UseRedisCache(rdb *redis.Client, ttl time.Duration) {
	s.rdb = rdb
	s.ttl = ttl
}

func cacheKey(day string) string {
	return "hours:" + day
}

// EffectiveHours returns the open interval for a date. Overrides win over
// the recurring weekday rule; a missing weekday rule is a ConfigError.
func (s *Store) EffectiveHours(ctx context.Context, day string) (DayHours, error) {
	if hours, ok := s.readCache(ctx, day); ok {
		return hours, nil
	}

	hours, err := s.resolve(ctx, day)
	if err != nil {
		return DayHours{}, err
	}
	s.writeCache(ctx, day, hours)
	return hours, nil
}

func (s *Store) resolve(ctx context.Context, day string) (DayHours, error) {
	date, err := time.Parse("2006-01-02", day)
	if err != nil {
		return DayHours{}, fmt.Errorf("parse day %q: %w", day, err)
	}

	override, err := s.source.GetOverride(ctx, day)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return DayHours{}, fmt.Errorf("get override: %w", err)
	}
	if override != nil {
		if override.Closed {
			return DayHours{Closed: true}, nil
		}
		return DayHours{OpenTime: override.OpenTime, CloseTime: override.CloseTime}, nil
	}

	rules, err := s.source.GetWeekdayRules(ctx)
	if err != nil {
		return DayHours{}, fmt.Errorf("get weekday rules: %w", err)
	}
	if len(rules) < 7 {
		return DayHours{}, &ConfigError{Reason: fmt.Sprintf("weekday rule set incomplete: %d of 7 rules", len(rules))}
	}

	weekday := int(date.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday = 7
	}
	for _, r := range rules {
		if r.Weekday != weekday {
			continue
		}
		if r.Closed {
			return DayHours{Closed: true}, nil
		}
		return DayHours{OpenTime: r.OpenTime, CloseTime: r.CloseTime}, nil
	}
	return DayHours{}, &ConfigError{Reason: fmt.Sprintf("no rule for weekday %d", weekday)}
}

// Invalidate drops the cached hours for a date. Called after override writes
// so the change is visible without waiting out the TTL.
func (s *Store) Invalidate(ctx context.Context, day string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey(day)).Err(); err != nil && s.logger != nil {
		s.logger.Warn().Err(err).Str("day", day).Msg("invalidate hours cache")
	}
}

func (s *Store) readCache(ctx context.Context, day string) (DayHours, bool) {
	if s.rdb == nil || s.ttl <= 0 {
		return DayHours{}, false
	}
	data, err := s.rdb.Get(ctx, cacheKey(day)).Bytes()
	if err != nil {
		return DayHours{}, false
	}
	var hours DayHours
	if err := json.Unmarshal(data, &hours); err != nil {
		return DayHours{}, false
	}
	return hours, true
}

func (s *Store) writeCache(ctx context.Context, day string, hours DayHours) {
	if s.rdb == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(hours)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(day), data, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn().Err(err).Str("day", day).Msg("write hours cache")
	}
}
