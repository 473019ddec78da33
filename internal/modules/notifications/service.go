package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Service creates notifications on behalf of the pipeline.
// It implements domain.NotificationSink: failures are logged, never returned.
type Service struct {
	repo      *Repository
	perMinute int
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*keyLimiter
}

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewService creates a notification service. perMinute caps repeats of the
// same alert (user, type and ticker) per minute; perMinute <= 0 disables it.
// Notifications that are not about a ticker are never throttled.
func NewService(repo *Repository, perMinute int, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		perMinute: perMinute,
		log:       log.With().Str("service", "notifications").Logger(),
		now:       time.Now,
		limiters:  make(map[string]*keyLimiter),
	}
}

var _ domain.NotificationSink = (*Service)(nil)

// Create stores n and returns its id, or "" when it was rejected, throttled
// or could not be stored.
func (s *Service) Create(ctx context.Context, n domain.Notification) string {
	if n.UserID == "" || n.Title == "" {
		s.log.Warn().Str("type", string(n.Type)).Msg("Dropping notification without user or title")
		return ""
	}

	if !s.allow(n) {
		s.log.Warn().
			Str("user_id", n.UserID).
			Str("type", string(n.Type)).
			Str("ticker", tickerOf(n)).
			Msg("Repeated notification throttled")
		return ""
	}

	n.ID = uuid.New().String()
	if n.Priority == "" {
		n.Priority = domain.NotificationPriorityNormal
	}
	n.CreatedAt = s.now().UTC()

	if err := s.repo.Insert(ctx, n); err != nil {
		s.log.Error().
			Err(err).
			Str("user_id", n.UserID).
			Str("type", string(n.Type)).
			Msg("Failed to create notification")
		return ""
	}

	s.log.Debug().
		Str("notification_id", n.ID).
		Str("user_id", n.UserID).
		Str("type", string(n.Type)).
		Msg("Notification created")
	return n.ID
}

// List returns a user's recent notifications
func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// CountUnread returns the number of unread notifications of a user
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead flags a notification as read
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

func tickerOf(n domain.Notification) string {
	ticker, _ := n.Data["ticker"].(string)
	return ticker
}

func (s *Service) allow(n domain.Notification) bool {
	ticker := tickerOf(n)
	if s.perMinute <= 0 || ticker == "" {
		return true
	}
	key := n.UserID + "|" + string(n.Type) + "|" + ticker

	s.mu.Lock()
	defer s.mu.Unlock()

	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMinute)), s.perMinute),
		}
		s.limiters[key] = kl
	}
	kl.lastAccess = s.now()
	return kl.limiter.Allow()
}

// PruneLimiters drops alert limiters idle for longer than idle and
// returns how many were removed.
func (s *Service) PruneLimiters(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for key, kl := range s.limiters {
		if kl.lastAccess.Before(cutoff) {
			delete(s.limiters, key)
			removed++
		}
	}
	return removed
}
