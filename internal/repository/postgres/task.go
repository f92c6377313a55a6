package postgres

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/repository"
)

const (
	taskColumns = `id, user_id, seller_id, product_name, order_amount, commission_amount, current_step,
					task_status, refund_requested, order_placed_at, delivery_received_at,
					review_submitted_at, refund_requested_at, created_at`

	insertTaskQuery = `
					INSERT INTO tasks (user_id, seller_id, product_name, order_amount, commission_amount)
					VALUES ($1, $2, $3, $4, $5)
					RETURNING ` + taskColumns
	selectTaskQuery = `
					SELECT ` + taskColumns + ` FROM tasks
					WHERE id = $1
`
	selectTaskForUpdateQuery = selectTaskQuery + ` FOR UPDATE`

	selectTasksByUserIDQuery = `
					SELECT ` + taskColumns + ` FROM tasks
					WHERE user_id = $1
					ORDER BY created_at DESC, id DESC
					LIMIT $2 OFFSET $3
`
	countTasksByUserIDQuery = `SELECT COUNT(*) FROM tasks WHERE user_id = $1`

	updateTaskProgressQuery = `
					UPDATE tasks
					SET current_step = $1, refund_requested = $2, order_placed_at = $3,
						delivery_received_at = $4, review_submitted_at = $5, refund_requested_at = $6
					WHERE id = $7 AND current_step = $8
`
	insertProofQuery = `
					INSERT INTO task_proofs (task_id, step_number, proof_url, proof_text)
					VALUES ($1, $2, $3, $4)
					RETURNING id, created_at
`
	selectProofsQuery = `
					SELECT id, task_id, step_number, proof_url, proof_text, created_at FROM task_proofs
					WHERE task_id = $1
					ORDER BY step_number
`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	task := models.Task{}
	err := row.Scan(&task.ID, &task.UserID, &task.SellerID, &task.ProductName, &task.OrderAmount,
		&task.CommissionAmount, &task.CurrentStep, &task.Status, &task.RefundRequested,
		&task.OrderPlacedAt, &task.DeliveryReceivedAt, &task.ReviewSubmittedAt,
		&task.RefundRequestedAt, &task.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return &task, nil
}

// TaskRepository implements repository.TaskRepository
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates new TaskRepository instance
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithinTaskTx runs fn in one transaction
func (tr *TaskRepository) WithinTaskTx(ctx context.Context, fn func(ctx context.Context, tx repository.TaskTx) error) error {
	return tr.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &taskTx{db: tr.db, tx: tx})
	})
}

// CreateTask inserts new task
func (tr *TaskRepository) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	return scanTask(tr.db.QueryRow(ctx, insertTaskQuery, task.UserID, task.SellerID, task.ProductName,
		task.OrderAmount, task.CommissionAmount))
}

// GetTask returns task by id
func (tr *TaskRepository) GetTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	return scanTask(tr.db.QueryRow(ctx, selectTaskQuery, taskID))
}

// GetProofs returns task proofs ordered by step
func (tr *TaskRepository) GetProofs(ctx context.Context, taskID uint64) ([]models.TaskProof, error) {
	rows, err := tr.db.Query(ctx, selectProofsQuery, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proofs := []models.TaskProof{}

	for rows.Next() {
		proof := models.TaskProof{}
		err = rows.Scan(&proof.ID, &proof.TaskID, &proof.StepNumber, &proof.ProofURL, &proof.ProofText, &proof.CreatedAt)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return proofs, nil
}

// GetTasksByUserID returns page of user tasks and total count
func (tr *TaskRepository) GetTasksByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.Task, int, error) {
	var total int
	if err := tr.db.QueryRow(ctx, countTasksByUserIDQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := tr.db.Query(ctx, selectTasksByUserIDQuery, userID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks := []models.Task{}

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

type taskTx struct {
	db *DB
	tx pgx.Tx
}

func (t *taskTx) GetTaskForUpdate(ctx context.Context, taskID uint64) (*models.Task, error) {
	return scanTask(t.tx.QueryRow(ctx, selectTaskForUpdateQuery, taskID))
}

func (t *taskTx) CreateProof(ctx context.Context, proof *models.TaskProof) error {
	err := t.tx.QueryRow(ctx, insertProofQuery, proof.TaskID, proof.StepNumber, proof.ProofURL, proof.ProofText).
		Scan(&proof.ID, &proof.CreatedAt)
	if err != nil {
		if t.db.ErrorCode(err) == pgErrUniqueViolationCode {
			return models.ErrConflictData
		}
		return err
	}
	return nil
}

func (t *taskTx) UpdateTaskProgress(ctx context.Context, task *models.Task, fromStep int) error {
	cmd, err := t.tx.Exec(ctx, updateTaskProgressQuery, task.CurrentStep, task.RefundRequested,
		task.OrderPlacedAt, task.DeliveryReceivedAt, task.ReviewSubmittedAt, task.RefundRequestedAt,
		task.ID, fromStep)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrConflictData
	}

	return nil
}
