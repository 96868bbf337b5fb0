package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/progress"
	"github.com/JakeFAU/jobspy-server/internal/store"
)

// StoreSink forwards event batches to a store.ProgressRepository.
type StoreSink struct {
	repo   store.ProgressRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for repo.
func NewStoreSink(repo store.ProgressRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume appends the batch. Repository errors are returned to the hub, which logs them.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil || len(batch) == 0 {
		return nil
	}
	if err := s.repo.AppendEvents(ctx, batch); err != nil {
		return fmt.Errorf("append progress events: %w", err)
	}
	s.logger.Debug("progress batch stored", zap.Int("events", len(batch)))
	return nil
}

// Close implements progress.Sink; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
