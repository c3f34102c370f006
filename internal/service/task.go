package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// TaskService handles task operations inside a project
type TaskService struct {
	taskRepo      domain.TaskRepository
	milestoneRepo domain.MilestoneRepository
	access        access
	events        EventEmitter
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo domain.TaskRepository, milestoneRepo domain.MilestoneRepository, memberRepo domain.MemberRepository, events EventEmitter) *TaskService {
	return &TaskService{
		taskRepo:      taskRepo,
		milestoneRepo: milestoneRepo,
		access:        access{members: memberRepo},
		events:        emitterOrNop(events),
	}
}

// List lists the tasks of a project
func (s *TaskService) List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Task, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Create creates a task
func (s *TaskService) Create(ctx context.Context, userID, projectID uuid.UUID, input domain.TaskCreate) (*domain.Task, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if err := s.checkMilestone(ctx, projectID, input.MilestoneID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New(),
		ProjectID:   projectID,
		MilestoneID: input.MilestoneID,
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.events.Emit(ctx, domain.NewTaskEvent(domain.ActionCreated, *task))
	return task, nil
}

// Update updates a task
func (s *TaskService) Update(ctx context.Context, userID, projectID, taskID uuid.UUID, input domain.TaskUpdate) (*domain.Task, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if err := s.checkMilestone(ctx, projectID, input.MilestoneID); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, projectID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, ErrNotFound
	}

	input.Apply(task)
	task.UpdatedAt = time.Now().UTC()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.events.Emit(ctx, domain.NewTaskEvent(domain.ActionUpdated, *task))
	return task, nil
}

// Delete deletes a task
func (s *TaskService) Delete(ctx context.Context, userID, projectID, taskID uuid.UUID) error {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return err
	}

	task, err := s.taskRepo.GetByID(ctx, projectID, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return ErrNotFound
	}

	deleted, err := s.taskRepo.Delete(ctx, projectID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.events.Emit(ctx, domain.NewTaskEvent(domain.ActionDeleted, *task))
	return nil
}

func (s *TaskService) checkMilestone(ctx context.Context, projectID uuid.UUID, milestoneID *uuid.UUID) error {
	if milestoneID == nil {
		return nil
	}
	milestone, err := s.milestoneRepo.GetByID(ctx, projectID, *milestoneID)
	if err != nil {
		return fmt.Errorf("failed to get milestone: %w", err)
	}
	if milestone == nil {
		return ErrMilestoneNotInProject
	}
	return nil
}
