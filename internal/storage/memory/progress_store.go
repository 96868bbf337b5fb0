package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/jobspy-server/internal/progress"
	"github.com/JakeFAU/jobspy-server/internal/store"
)

// DefaultEventsPerTask caps the history kept for each task.
const DefaultEventsPerTask = 256

// ProgressStore keeps the most recent events of each task in memory.
type ProgressStore struct {
	mu      sync.RWMutex
	events  map[string][]progress.Event
	perTask int
}

// NewProgressStore constructs a ProgressStore keeping at most perTask events per task.
func NewProgressStore(perTask int) *ProgressStore {
	if perTask <= 0 {
		perTask = DefaultEventsPerTask
	}
	return &ProgressStore{
		events:  make(map[string][]progress.Event),
		perTask: perTask,
	}
}

// AppendEvents records events, dropping the oldest beyond the per-task cap.
func (s *ProgressStore) AppendEvents(ctx context.Context, events []progress.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range events {
		if evt.TaskID == "" {
			continue
		}
		history := append(s.events[evt.TaskID], evt)
		if over := len(history) - s.perTask; over > 0 {
			history = append(history[:0:0], history[over:]...)
		}
		s.events[evt.TaskID] = history
	}
	return nil
}

// TaskEvents returns a copy of the task's history.
func (s *ProgressStore) TaskEvents(_ context.Context, taskID string) ([]progress.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.events[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	return append([]progress.Event(nil), history...), nil
}
