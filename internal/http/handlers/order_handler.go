package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/service"
)

// OrderHandler предоставляет HTTP слой жизненного цикла заказа: от
// публикации до приёмки работы.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler создаёт хэндлер.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create обрабатывает POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		CategoryID  uuid.UUID  `json:"category_id" binding:"required"`
		Title       string     `json:"title" binding:"required"`
		Description string     `json:"description" binding:"required"`
		BudgetMin   *float64   `json:"budget_min"`
		BudgetMax   *float64   `json:"budget_max"`
		DeadlineAt  *time.Time `json:"deadline_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("некорректное тело запроса"))
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		ClientID:    userID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		DeadlineAt:  req.DeadlineAt,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// Get обрабатывает GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListMy обрабатывает GET /orders/my: заказы, где пользователь заказчик,
// и заказы, где он исполнитель, отдаются раздельно.
func (h *OrderHandler) ListMy(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	limit, offset := pagination(c)

	asClient, asExecutor, err := h.orders.ListMyOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"as_client":   asClient,
		"as_executor": asExecutor,
	})
}

// Delete обрабатывает DELETE /orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), userID, orderID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "заказ удалён"})
}

// CreateResponse обрабатывает POST /orders/:id/responses.
func (h *OrderHandler) CreateResponse(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		CoverLetter   string   `json:"cover_letter" binding:"required"`
		ProposedPrice *float64 `json:"proposed_price"`
		ProposedDays  *int     `json:"proposed_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("некорректное тело запроса"))
		return
	}

	response, err := h.orders.CreateResponse(c.Request.Context(), service.CreateResponseInput{
		OrderID:       orderID,
		ExecutorID:    userID,
		CoverLetter:   req.CoverLetter,
		ProposedPrice: req.ProposedPrice,
		ProposedDays:  req.ProposedDays,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListResponses обрабатывает GET /orders/:id/responses (только владелец).
func (h *OrderHandler) ListResponses(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	responses, err := h.orders.ListResponses(c.Request.Context(), userID, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, responses)
}

// GetMyResponse обрабатывает GET /orders/:id/responses/my.
func (h *OrderHandler) GetMyResponse(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	response, err := h.orders.GetMyResponse(c.Request.Context(), userID, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// WithdrawResponse обрабатывает DELETE /responses/:id.
func (h *OrderHandler) WithdrawResponse(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	responseID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.orders.WithdrawResponse(c.Request.Context(), userID, responseID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "отклик отозван"})
}

// SelectExecutor обрабатывает POST /orders/:id/select.
func (h *OrderHandler) SelectExecutor(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		ResponseID     uuid.UUID  `json:"response_id" binding:"required"`
		AgreedPrice    *float64   `json:"agreed_price"`
		AgreedDeadline *time.Time `json:"agreed_deadline"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("response_id обязателен"))
		return
	}

	order, err := h.orders.SelectExecutor(c.Request.Context(), service.SelectExecutorInput{
		ClientID:       userID,
		OrderID:        orderID,
		ResponseID:     req.ResponseID,
		AgreedPrice:    req.AgreedPrice,
		AgreedDeadline: req.AgreedDeadline,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// SubmitForReview обрабатывает POST /orders/:id/submit.
func (h *OrderHandler) SubmitForReview(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	order, err := h.orders.SubmitForReview(c.Request.Context(), userID, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Approve обрабатывает POST /orders/:id/approve.
func (h *OrderHandler) Approve(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	order, err := h.orders.ApproveWork(c.Request.Context(), userID, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// RequestRevision обрабатывает POST /orders/:id/revision.
func (h *OrderHandler) RequestRevision(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Тело опционально: доработка без комментария допустима.
	_ = c.ShouldBindJSON(&req)

	order, err := h.orders.RequestRevision(c.Request.Context(), userID, orderID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}
