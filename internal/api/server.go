// Package api exposes the scheduling engine to the admin console over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clubsched/internal/engine"
	"clubsched/internal/model"
	"clubsched/internal/schedule"
)

// RulesAdmin covers the staff-facing calendar configuration writes.
type RulesAdmin interface {
	UpsertWeekdayRule(ctx context.Context, r *model.WeekdayRule) error
	SetOverride(ctx context.Context, o *model.DateOverride) error
	DeleteOverride(ctx context.Context, day string) error
	ListRecentActivity(ctx context.Context, limit int) ([]model.ActivityEvent, error)
}

// Invalidator drops cached hours after a rule write.
type Invalidator interface {
	Invalidate(ctx context.Context, day string)
}

// Server is the HTTP surface over the scheduling facade.
type Server struct {
	engine  *engine.Engine
	rules   RulesAdmin
	cache   Invalidator
	limiter *rate.Limiter
	logger  *zerolog.Logger
	srv     *http.Server
}

// Options configures the server.
type Options struct {
	Port          int
	RatePerSecond float64
	RateBurst     int
}

// NewServer wires routes and middleware.
func NewServer(eng *engine.Engine, rules RulesAdmin, cache Invalidator, opts Options, logger *zerolog.Logger) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 40
	}

	s := &Server{
		engine:  eng,
		rules:   rules,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/slots", s.handleSlots)
	mux.HandleFunc("/api/v1/reservations", s.handleReservations)
	mux.HandleFunc("/api/v1/reservations/", s.handleReservationStatus)
	mux.HandleFunc("/api/v1/rules/hours", s.handleWeekdayRule)
	mux.HandleFunc("/api/v1/rules/overrides", s.handleOverride)
	mux.HandleFunc("/api/v1/activity", s.handleActivity)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler. Used in tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctxShutdown)
	}()
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// validDay checks the YYYY-MM-DD wire format.
func validDay(day string) bool {
	_, err := time.Parse("2006-01-02", day)
	return err == nil
}

// validSlot checks the HH:MM wire format.
func validSlot(slot string) bool {
	_, err := time.Parse("15:04", slot)
	return err == nil
}

var _ Invalidator = (*schedule.Store)(nil)
