package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/service"
)

// ReviewHandler предоставляет HTTP слой отзывов и модерации их видимости.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler создаёт хэндлер.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create обрабатывает POST /orders/:id/reviews.
func (h *ReviewHandler) Create(c *gin.Context) {
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
		Rating  int     `json:"rating" binding:"required"`
		Comment *string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("rating обязателен"))
		return
	}

	review, err := h.reviews.CreateReview(c.Request.Context(), service.CreateReviewInput{
		OrderID:    orderID,
		ReviewerID: userID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// Update обрабатывает PUT /reviews/:id.
func (h *ReviewHandler) Update(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	reviewID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		Rating  int     `json:"rating" binding:"required"`
		Comment *string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("rating обязателен"))
		return
	}

	review, err := h.reviews.UpdateReview(c.Request.Context(), userID, reviewID, req.Rating, req.Comment)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// Delete обрабатывает DELETE /reviews/:id.
func (h *ReviewHandler) Delete(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	reviewID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.reviews.DeleteReview(c.Request.Context(), userID, reviewID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "отзыв удалён"})
}

// ListByExecutor обрабатывает GET /executors/:id/reviews.
func (h *ReviewHandler) ListByExecutor(c *gin.Context) {
	executorID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	limit, offset := pagination(c)

	reviews, err := h.reviews.ListByExecutor(c.Request.Context(), executorID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reviews)
}

// SetVisibility обрабатывает PATCH /admin/reviews/:id/visibility.
func (h *ReviewHandler) SetVisibility(c *gin.Context) {
	reviewID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		IsVisible *bool `json:"is_visible" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("is_visible обязателен"))
		return
	}

	if err := h.reviews.SetVisibility(c.Request.Context(), reviewID, *req.IsVisible); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "видимость отзыва обновлена"})
}
