package service

import (
	"context"
	"errors"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/repository"
	"go.uber.org/zap"
	"net/url"
	"regexp"
	"time"
)

const (
	maxProofURLLen = 2048
	maxOrderIDLen  = 100
)

var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9\-_/#]+$`)

// stepRule describes one proof submission
type stepRule struct {
	step int
	// outOfOrder is returned when task is not at the previous step
	outOfOrder error
	stamp      func(task *models.Task, at time.Time)
}

var (
	orderStep = stepRule{
		step:       models.StepOrderPlaced,
		outOfOrder: models.ErrOrderAlreadySubmitted,
		stamp: func(task *models.Task, at time.Time) {
			task.OrderPlacedAt = &at
		},
	}
	deliveryStep = stepRule{
		step:       models.StepDeliveryConfirmed,
		outOfOrder: models.ErrInvalidStep,
		stamp: func(task *models.Task, at time.Time) {
			task.DeliveryReceivedAt = &at
		},
	}
	reviewStep = stepRule{
		step:       models.StepReviewSubmitted,
		outOfOrder: models.ErrInvalidStep,
		stamp: func(task *models.Task, at time.Time) {
			task.ReviewSubmittedAt = &at
		},
	}
	refundStep = stepRule{
		step:       models.StepRefundRequested,
		outOfOrder: models.ErrInvalidStep,
		stamp: func(task *models.Task, at time.Time) {
			task.RefundRequestedAt = &at
			task.RefundRequested = true
		},
	}
)

// TaskService implements task proof submission
type TaskService struct {
	repo repository.TaskRepository
	now  func() time.Time
}

// NewTaskService creates new TaskService instance
func NewTaskService(repo repository.TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
		now:  time.Now,
	}
}

func validateTaskID(taskID uint64) error {
	if taskID == 0 {
		return models.ValidationError("Invalid task id")
	}
	return nil
}

func validateProofURL(proofURL string) error {
	if proofURL == "" {
		return models.ValidationError("Proof URL is required")
	}
	if len(proofURL) > maxProofURLLen {
		return models.ValidationError("Proof URL is too long")
	}
	u, err := url.Parse(proofURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ValidationError("Proof URL must be an absolute http or https URL")
	}
	return nil
}

func validateOrderID(orderID string) error {
	if orderID == "" {
		return models.ValidationError("Order id is required")
	}
	if len(orderID) > maxOrderIDLen {
		return models.ValidationError("Order id is too long")
	}
	if !orderIDPattern.MatchString(orderID) {
		return models.ValidationError("Order id contains invalid characters")
	}
	return nil
}

// SubmitOrder stores order proof of task at step 0
func (ts *TaskService) SubmitOrder(ctx context.Context, taskID, userID uint64, orderID, proofURL string) (*models.Task, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}
	return ts.advanceStep(ctx, taskID, userID, orderStep, proofURL, &orderID)
}

// SubmitDelivery stores delivery proof of task at step 1
func (ts *TaskService) SubmitDelivery(ctx context.Context, taskID, userID uint64, proofURL string) (*models.Task, error) {
	return ts.advanceStep(ctx, taskID, userID, deliveryStep, proofURL, nil)
}

// SubmitReview stores review proof of task at step 2
func (ts *TaskService) SubmitReview(ctx context.Context, taskID, userID uint64, proofURL string) (*models.Task, error) {
	return ts.advanceStep(ctx, taskID, userID, reviewStep, proofURL, nil)
}

// SubmitRefundProof stores refund proof of task at step 3 and marks refund requested
func (ts *TaskService) SubmitRefundProof(ctx context.Context, taskID, userID uint64, proofURL string) (*models.Task, error) {
	return ts.advanceStep(ctx, taskID, userID, refundStep, proofURL, nil)
}

// advanceStep inserts proof and moves task to rule.step in one transaction.
// Nothing is written when the task is not at rule.step-1.
func (ts *TaskService) advanceStep(ctx context.Context, taskID, userID uint64, rule stepRule, proofURL string, proofText *string) (*models.Task, error) {
	if err := validateTaskID(taskID); err != nil {
		return nil, err
	}
	if err := validateProofURL(proofURL); err != nil {
		return nil, err
	}

	var updated *models.Task

	err := ts.repo.WithinTaskTx(ctx, func(ctx context.Context, tx repository.TaskTx) error {
		task, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				return models.ErrTaskNotFound
			}
			return err
		}
		// foreign tasks look missing
		if task.UserID != userID {
			return models.ErrTaskNotFound
		}
		if task.Closed() {
			return models.ErrTaskClosed
		}
		if task.CurrentStep != rule.step-1 {
			return rule.outOfOrder
		}

		proof := models.TaskProof{
			TaskID:     task.ID,
			StepNumber: rule.step,
			ProofURL:   proofURL,
			ProofText:  proofText,
		}
		if err := tx.CreateProof(ctx, &proof); err != nil {
			if errors.Is(err, models.ErrConflictData) {
				return rule.outOfOrder
			}
			return err
		}

		fromStep := task.CurrentStep
		task.CurrentStep = rule.step
		rule.stamp(task, ts.now())

		if err := tx.UpdateTaskProgress(ctx, task, fromStep); err != nil {
			if errors.Is(err, models.ErrConflictData) {
				return rule.outOfOrder
			}
			return err
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, classify(err, "advance task step",
			zap.Uint64("task_id", taskID), zap.Uint64("user_id", userID), zap.Int("step", rule.step))
	}

	logger.Log.Info("task step submitted",
		zap.Uint64("task_id", taskID), zap.Uint64("user_id", userID), zap.Int("step", rule.step))

	return updated, nil
}

// GetTask returns task of user with its proofs
func (ts *TaskService) GetTask(ctx context.Context, taskID, userID uint64) (*models.TaskDetails, error) {
	if err := validateTaskID(taskID); err != nil {
		return nil, err
	}

	task, err := ts.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil, models.ErrTaskNotFound
		}
		return nil, classify(err, "get task", zap.Uint64("task_id", taskID))
	}
	if task.UserID != userID {
		return nil, models.ErrTaskNotFound
	}

	proofs, err := ts.repo.GetProofs(ctx, taskID)
	if err != nil {
		return nil, classify(err, "get task proofs", zap.Uint64("task_id", taskID))
	}

	return &models.TaskDetails{Task: *task, Proofs: proofs}, nil
}

// ListTasks returns page of user tasks and total count
func (ts *TaskService) ListTasks(ctx context.Context, userID uint64, page models.Page) ([]models.Task, int, error) {
	tasks, total, err := ts.repo.GetTasksByUserID(ctx, userID, page.Normalize())
	if err != nil {
		return nil, 0, classify(err, "list tasks", zap.Uint64("user_id", userID))
	}
	return tasks, total, nil
}
