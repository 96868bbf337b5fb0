// Package memory provides the in-process task and progress stores.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// TaskStore keeps every task in a map for the life of the process.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]scraper.Task
	clock scraper.Clock
}

// NewTaskStore constructs a TaskStore. A nil clock uses UTC wall time.
func NewTaskStore(clock scraper.Clock) *TaskStore {
	return &TaskStore{
		tasks: make(map[string]scraper.Task),
		clock: clock,
	}
}

// CreateTask stores a new task in processing status.
func (s *TaskStore) CreateTask(_ context.Context, task scraper.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	task.Status = scraper.TaskStatusProcessing
	task.Request = task.Request.Clone()
	task.Jobs = nil
	task.Error = ""
	task.Finished = nil
	if task.Submitted.IsZero() {
		task.Submitted = s.now()
	}
	s.tasks[task.ID] = task
	return nil
}

// CompleteTask records the postings and marks the task completed.
func (s *TaskStore) CompleteTask(_ context.Context, taskID string, jobs []scraper.JobPost) error {
	if jobs == nil {
		jobs = []scraper.JobPost{}
	}
	return s.finish(taskID, func(task *scraper.Task) {
		task.Status = scraper.TaskStatusCompleted
		task.Jobs = slices.Clone(jobs)
	})
}

// FailTask records the failure text and marks the task failed.
func (s *TaskStore) FailTask(_ context.Context, taskID string, errText string) error {
	return s.finish(taskID, func(task *scraper.Task) {
		task.Status = scraper.TaskStatusFailed
		task.Error = errText
	})
}

// finish applies a terminal transition under the write lock. Only processing tasks move.
func (s *TaskStore) finish(taskID string, apply func(*scraper.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", scraper.ErrTaskNotFound, taskID)
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", scraper.ErrTaskTerminal, taskID, task.Status)
	}
	apply(&task)
	finished := s.now()
	task.Finished = &finished
	s.tasks[taskID] = task
	return nil
}

// GetTask returns a copy of the task.
func (s *TaskStore) GetTask(_ context.Context, taskID string) (scraper.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return scraper.Task{}, fmt.Errorf("%w: %s", scraper.ErrTaskNotFound, taskID)
	}
	task.Request = task.Request.Clone()
	task.Jobs = slices.Clone(task.Jobs)
	if task.Finished != nil {
		finished := *task.Finished
		task.Finished = &finished
	}
	return task, nil
}

// CountTasks returns how many tasks are held.
func (s *TaskStore) CountTasks(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks), nil
}

func (s *TaskStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
