package usage

import (
	"context"
	"time"

	"abstkit/internal"
	"abstkit/internal/errors"
	"abstkit/models"
	"abstkit/ports"

	"github.com/google/uuid"
)

// Service handles LLM usage tracking and persistence
type Service struct {
	repo   ports.LLMUsageRepository
	logger *internal.Logger
	delay  time.Duration
}

// NewService creates a new usage service
func NewService(repo ports.LLMUsageRepository) *Service {
	return &Service{repo: repo, logger: internal.DefaultLogger, delay: 100 * time.Millisecond}
}

// RecordUsage persists one call's usage for a run. Tracking problems are
// logged and never returned to the caller.
func (s *Service) RecordUsage(ctx context.Context, runID uuid.UUID, operationType string, usage *ports.UsageData) {
	if s == nil || s.repo == nil {
		return
	}
	if usage == nil {
		s.logger.Debug("[UsageService] no usage data for %s", operationType)
		return
	}
	if usage.PromptTokens < 0 || usage.CompletionTokens < 0 || usage.TotalTokens < 0 {
		s.logger.Error("[UsageService] invalid token counts: %+v", usage)
		return
	}

	record := &models.LLMUsage{
		ID:               uuid.New(),
		RunID:            runID,
		Provider:         usage.Provider,
		Model:            usage.Model,
		OperationType:    operationType,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CreatedAt:        time.Now(),
	}

	if err := s.persistWithRetry(ctx, record); err != nil {
		s.logger.Error("[UsageService] failed to persist usage after retries: %v", err)
	}
}

// persistWithRetry tries three times with a linearly growing pause
func (s *Service) persistWithRetry(ctx context.Context, usage *models.LLMUsage) error {
	const maxRetries = 3

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = s.repo.RecordUsage(ctx, usage); err == nil {
			return nil
		}
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * s.delay):
			}
		}
	}
	return errors.WithCode(errors.CodeDatabaseError, err)
}

// Summary returns aggregated usage for the last days days
func (s *Service) Summary(ctx context.Context, days int) (*models.UsageSummary, error) {
	if days <= 0 {
		days = 30
	}
	end := time.Now()
	return s.repo.GetUsageSummary(ctx, end.AddDate(0, 0, -days), end)
}

// Usage returns detailed records in a period
func (s *Service) Usage(ctx context.Context, start, end time.Time) ([]*models.LLMUsage, error) {
	return s.repo.GetUsage(ctx, start, end)
}
