package service

import (
	"context"
	"log/slog"
	"time"
)

// SweepExpired removes expired refresh tokens, two-factor challenges and
// password resets. Each store is swept independently so one failure does
// not block the others.
func (s *AuthService) SweepExpired(ctx context.Context) {
	now := s.now().UTC()

	if n, err := s.tokenRepo.DeleteExpired(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to sweep refresh tokens", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "swept expired refresh tokens", slog.Int64("count", n))
	}

	if n, err := s.challengeRepo.DeleteExpired(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to sweep challenges", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "swept expired challenges", slog.Int64("count", n))
	}

	if n, err := s.resetRepo.DeleteExpired(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to sweep password resets", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "swept expired password resets", slog.Int64("count", n))
	}
}

// RunSweeper sweeps expired records on the given interval until the context
// is cancelled.
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.SweepExpired(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}
