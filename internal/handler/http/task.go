package handler

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

// TaskService is interface for task proof operations
type TaskService interface {
	SubmitOrder(ctx context.Context, taskID, userID uint64, orderID, proofURL string) (*models.Task, error)
	SubmitDelivery(ctx context.Context, taskID, userID uint64, proofURL string) (*models.Task, error)
	SubmitReview(ctx context.Context, taskID, userID uint64, proofURL string) (*models.Task, error)
	SubmitRefundProof(ctx context.Context, taskID, userID uint64, proofURL string) (*models.Task, error)
	GetTask(ctx context.Context, taskID, userID uint64) (*models.TaskDetails, error)
	ListTasks(ctx context.Context, userID uint64, page models.Page) ([]models.Task, int, error)
}

// TaskHandler represents HTTP handler for task-related requests
type TaskHandler struct {
	svc TaskService
}

// NewTaskHandler creates new TaskHandler instance
func NewTaskHandler(svc TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type proofRequest struct {
	OrderID  string `json:"order_id,omitempty"`
	ProofURL string `json:"proof_url"`
}

type taskResponse struct {
	ID                 uint64          `json:"id"`
	SellerID           uint64          `json:"seller_id"`
	ProductName        string          `json:"product_name,omitempty"`
	OrderAmount        decimal.Decimal `json:"order_amount"`
	CommissionAmount   decimal.Decimal `json:"commission_amount"`
	CurrentStep        int             `json:"current_step"`
	Status             string          `json:"status"`
	RefundRequested    bool            `json:"refund_requested"`
	OrderPlacedAt      *time.Time      `json:"order_placed_at,omitempty"`
	DeliveryReceivedAt *time.Time      `json:"delivery_received_at,omitempty"`
	ReviewSubmittedAt  *time.Time      `json:"review_submitted_at,omitempty"`
	RefundRequestedAt  *time.Time      `json:"refund_requested_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type proofResponse struct {
	StepNumber int       `json:"step_number"`
	ProofURL   string    `json:"proof_url"`
	ProofText  *string   `json:"proof_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type taskDetailsResponse struct {
	taskResponse
	Proofs []proofResponse `json:"proofs"`
}

func newTaskResponse(t *models.Task) taskResponse {
	return taskResponse{
		ID:                 t.ID,
		SellerID:           t.SellerID,
		ProductName:        t.ProductName,
		OrderAmount:        t.OrderAmount,
		CommissionAmount:   t.CommissionAmount,
		CurrentStep:        t.CurrentStep,
		Status:             t.Status,
		RefundRequested:    t.RefundRequested,
		OrderPlacedAt:      t.OrderPlacedAt,
		DeliveryReceivedAt: t.DeliveryReceivedAt,
		ReviewSubmittedAt:  t.ReviewSubmittedAt,
		RefundRequestedAt:  t.RefundRequestedAt,
		CreatedAt:          t.CreatedAt,
	}
}

type submitFunc func(ctx context.Context, taskID, userID uint64, req proofRequest) (*models.Task, error)

// submit decodes proof of task {id} and passes it to fn
func (th *TaskHandler) submit(fn submitFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		taskID, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		var req proofRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		task, err := fn(r.Context(), taskID, payload.UserID, req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusOK, newTaskResponse(task))
	}
}

// SubmitOrder handles order proof, POST /api/user/tasks/{id}/order
func (th *TaskHandler) SubmitOrder() http.HandlerFunc {
	return th.submit(func(ctx context.Context, taskID, userID uint64, req proofRequest) (*models.Task, error) {
		return th.svc.SubmitOrder(ctx, taskID, userID, req.OrderID, req.ProofURL)
	})
}

// SubmitDelivery handles delivery proof, POST /api/user/tasks/{id}/delivery
func (th *TaskHandler) SubmitDelivery() http.HandlerFunc {
	return th.submit(func(ctx context.Context, taskID, userID uint64, req proofRequest) (*models.Task, error) {
		return th.svc.SubmitDelivery(ctx, taskID, userID, req.ProofURL)
	})
}

// SubmitReview handles review proof, POST /api/user/tasks/{id}/review
func (th *TaskHandler) SubmitReview() http.HandlerFunc {
	return th.submit(func(ctx context.Context, taskID, userID uint64, req proofRequest) (*models.Task, error) {
		return th.svc.SubmitReview(ctx, taskID, userID, req.ProofURL)
	})
}

// SubmitRefundProof handles refund proof, POST /api/user/tasks/{id}/refund
func (th *TaskHandler) SubmitRefundProof() http.HandlerFunc {
	return th.submit(func(ctx context.Context, taskID, userID uint64, req proofRequest) (*models.Task, error) {
		return th.svc.SubmitRefundProof(ctx, taskID, userID, req.ProofURL)
	})
}

// GetTask returns task of user with proofs
func (th *TaskHandler) GetTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		taskID, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		details, err := th.svc.GetTask(r.Context(), taskID, payload.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := taskDetailsResponse{
			taskResponse: newTaskResponse(&details.Task),
			Proofs:       make([]proofResponse, 0, len(details.Proofs)),
		}
		for _, p := range details.Proofs {
			resp.Proofs = append(resp.Proofs, proofResponse{
				StepNumber: p.StepNumber,
				ProofURL:   p.ProofURL,
				ProofText:  p.ProofText,
				CreatedAt:  p.CreatedAt,
			})
		}

		writeData(w, http.StatusOK, resp)
	}
}

// ListTasks returns page of user tasks
func (th *TaskHandler) ListTasks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		page := parsePage(r)

		tasks, total, err := th.svc.ListTasks(r.Context(), payload.UserID, page)
		if err != nil {
			writeError(w, err)
			return
		}

		items := make([]taskResponse, 0, len(tasks))
		for i := range tasks {
			items = append(items, newTaskResponse(&tasks[i]))
		}

		writeData(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page.Number, PerPage: page.PerPage})
	}
}
