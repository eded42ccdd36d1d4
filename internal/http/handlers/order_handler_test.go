package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/avelichko/taskbroker-backend/internal/http/middleware"
)

func newTestRouter(authUserID *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if authUserID != nil {
		id := *authUserID
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserIDKey, id)
			c.Next()
		})
	}
	return r
}

func TestOrderHandler_Create_Unauthorized(t *testing.T) {
	r := newTestRouter(nil)
	handler := &OrderHandler{orders: nil}
	r.POST("/orders", handler.Create)

	req, _ := http.NewRequest("POST", "/orders", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderHandler_Create_InvalidBody(t *testing.T) {
	userID := uuid.New()
	r := newTestRouter(&userID)
	handler := &OrderHandler{orders: nil}
	r.POST("/orders", handler.Create)

	req, _ := http.NewRequest("POST", "/orders", strings.NewReader(`{"title": 42}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_REQUEST")
}

func TestOrderHandler_SelectExecutor_MissingResponseID(t *testing.T) {
	userID := uuid.New()
	r := newTestRouter(&userID)
	handler := &OrderHandler{orders: nil}
	r.POST("/orders/:id/select", handler.SelectExecutor)

	orderID := uuid.New()
	req, _ := http.NewRequest("POST", "/orders/"+orderID.String()+"/select", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_Get_InvalidUUID(t *testing.T) {
	r := newTestRouter(nil)
	handler := &OrderHandler{orders: nil}
	r.GET("/orders/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/orders/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_WithdrawResponse_InvalidUUID(t *testing.T) {
	userID := uuid.New()
	r := newTestRouter(&userID)
	handler := &OrderHandler{orders: nil}
	r.DELETE("/responses/:id", handler.WithdrawResponse)

	req, _ := http.NewRequest("DELETE", "/responses/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPagination_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", defaultPageLimit, 0},
		{"?limit=50&offset=10", 50, 10},
		{"?limit=9999", maxPageLimit, 0},
		{"?limit=-5&offset=-1", defaultPageLimit, 0},
		{"?limit=abc", defaultPageLimit, 0},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/x"+tc.query, nil)

		limit, offset := pagination(c)
		assert.Equal(t, tc.wantLimit, limit, tc.query)
		assert.Equal(t, tc.wantOffset, offset, tc.query)
	}
}
