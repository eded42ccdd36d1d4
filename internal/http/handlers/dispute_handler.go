package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelichko/taskbroker-backend/internal/logger"
	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/service"
	"github.com/avelichko/taskbroker-backend/internal/storage"
)

// DisputeHandler предоставляет HTTP слой работы со спорами, включая
// загрузку файлов-доказательств.
type DisputeHandler struct {
	disputes *service.DisputeService
	files    *storage.EvidenceStorage
}

// NewDisputeHandler создаёт хэндлер.
func NewDisputeHandler(disputes *service.DisputeService, files *storage.EvidenceStorage) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, files: files}
}

// Open обрабатывает POST /orders/:id/dispute.
func (h *DisputeHandler) Open(c *gin.Context) {
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
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("причина спора обязательна"))
		return
	}

	dispute, err := h.disputes.OpenDispute(c.Request.Context(), userID, orderID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// Get обрабатывает GET /disputes/:id: спор вместе с доказательствами.
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	viewer := &models.User{ID: userID, Role: currentUserRole(c)}
	dispute, evidence, err := h.disputes.GetDispute(c.Request.Context(), viewer, disputeID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dispute":  dispute,
		"evidence": evidence,
	})
}

// ListMy обрабатывает GET /disputes/my.
func (h *DisputeHandler) ListMy(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	limit, offset := pagination(c)

	disputes, err := h.disputes.ListMyDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// ListOpen обрабатывает GET /admin/disputes: очередь неразобранных споров.
func (h *DisputeHandler) ListOpen(c *gin.Context) {
	limit, offset := pagination(c)

	disputes, err := h.disputes.ListOpenDisputes(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// Take обрабатывает POST /admin/disputes/:id/take.
func (h *DisputeHandler) Take(c *gin.Context) {
	adminID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	dispute, err := h.disputes.TakeDispute(c.Request.Context(), adminID, disputeID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// UpdateNotes обрабатывает PUT /admin/disputes/:id/notes.
func (h *DisputeHandler) UpdateNotes(c *gin.Context) {
	adminID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		Notes string `json:"notes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("notes обязательны"))
		return
	}

	if err := h.disputes.AddAdminNotes(c.Request.Context(), adminID, disputeID, req.Notes); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "заметки сохранены"})
}

// Resolve обрабатывает POST /admin/disputes/:id/resolve.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	adminID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		Resolution string  `json:"resolution" binding:"required"`
		Notes      string  `json:"notes"`
		AdminNotes *string `json:"admin_notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("resolution обязателен"))
		return
	}

	dispute, err := h.disputes.ResolveDispute(c.Request.Context(), adminID, disputeID, req.Resolution, req.Notes, req.AdminNotes)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// UploadEvidence обрабатывает POST /disputes/:id/evidence (multipart).
// Файл сначала кладётся в хранилище, затем фиксируется в споре; при
// отказе сервиса файл подчищается.
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(apperror.BadRequest("файл обязателен"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.Error(apperror.BadRequest("не удалось прочитать файл"))
		return
	}
	defer src.Close()

	relPath, size, err := h.files.Save(c.Request.Context(), disputeID, fileHeader.Filename, src)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrFileTooLarge) {
			c.Error(apperror.BadRequest(err.Error()))
			return
		}
		c.Error(err)
		return
	}

	var comment *string
	if v := c.PostForm("comment"); v != "" {
		comment = &v
	}

	evidence, err := h.disputes.AddEvidence(c.Request.Context(), service.AddEvidenceInput{
		DisputeID:  disputeID,
		UploaderID: userID,
		FilePath:   relPath,
		FileName:   fileHeader.Filename,
		FileSize:   size,
		Comment:    comment,
	})
	if err != nil {
		if rmErr := h.files.Delete(c.Request.Context(), relPath); rmErr != nil {
			logger.Log.WithError(rmErr).Warn("не удалось удалить осиротевший файл доказательства")
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, evidence)
}
