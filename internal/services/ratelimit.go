package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/pkg/models"
)

// RateLimitService applies a sliding-window limit per caller. It is
// permissive when no key-value store is configured or the store fails.
type RateLimitService struct {
	kv     database.KeyValueStore
	limit  int
	window time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

func NewRateLimitService(cfg config.RateLimitConfig, kv database.KeyValueStore, logger *logrus.Logger) *RateLimitService {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimitService{
		kv:     kv,
		limit:  cfg.Admin,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// IsAllowed records a request by caller and reports whether it fits in the
// current window, together with the remaining budget.
func (s *RateLimitService) IsAllowed(ctx context.Context, caller string) (bool, *models.RateLimitInfo) {
	now := s.now()
	info := &models.RateLimitInfo{
		Limit:     s.limit,
		Remaining: max(0, s.limit-1),
		ResetTime: now.Add(s.window).Unix(),
	}
	if s.kv == nil || s.limit <= 0 {
		return true, info
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("cellar:rate_limit:%s", caller)
	count, err := s.kv.SlidingWindowHits(ctx, key, now, s.window)
	if err != nil {
		// Return permissive result if Redis is down
		s.logger.WithError(err).Error("Failed to execute rate limit pipeline")
		return true, info
	}

	info.Remaining = max(0, s.limit-int(count)-1)
	return int(count) < s.limit, info
}
