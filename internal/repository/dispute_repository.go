package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
)

// DisputeRepository отвечает за споры и доказательства.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create сохраняет спор. Один заказ — один спор: уникальный индекс на
// order_id превращает проигранную гонку в BadRequest, а не во вторую
// строку.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (order_id, opener_id, reason, status, room_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := common.Queryer(ctx, r.db).QueryRowxContext(ctx, query,
		d.OrderID, d.OpenerID, d.Reason, d.Status, d.RoomID).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "disputes_order_id_key") {
			return apperror.BadRequest("спор по этому заказу уже открыт")
		}
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT * FROM disputes WHERE id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &d, nil
}

// GetByIDForUpdate читает спор с блокировкой строки; её берёт каждый
// админский переход, чтобы два арбитра не разрешили один спор дважды.
func (r *DisputeRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT * FROM disputes WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get for update %w", err)
	}
	return &d, nil
}

// GetByOrderID возвращает спор заказа.
func (r *DisputeRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT * FROM disputes WHERE order_id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &d, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by order %w", err)
	}
	return &d, nil
}

// Take назначает администратора и переводит спор в рассмотрение.
func (r *DisputeRepository) Take(ctx context.Context, id, adminID uuid.UUID) error {
	query := `UPDATE disputes SET admin_id = $2, status = $3 WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, id, adminID, models.DisputeStatusUnderReview); err != nil {
		return fmt.Errorf("dispute repository: take %w", err)
	}
	return nil
}

// UpdateAdminNotes обновляет внутренние заметки арбитра.
func (r *DisputeRepository) UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) error {
	query := `UPDATE disputes SET admin_notes = $2 WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, id, notes); err != nil {
		return fmt.Errorf("dispute repository: update admin notes %w", err)
	}
	return nil
}

// Resolve записывает вердикт и закрывает спор.
func (r *DisputeRepository) Resolve(ctx context.Context, d *models.Dispute) error {
	query := `
		UPDATE disputes
		SET status = $2, admin_id = $3, resolution = $4, resolution_notes = $5,
		    admin_notes = COALESCE($6, admin_notes), resolved_at = $7
		WHERE id = $1
	`
	_, err := common.Queryer(ctx, r.db).ExecContext(ctx, query,
		d.ID, d.Status, d.AdminID, d.Resolution, d.ResolutionNotes, d.AdminNotes, d.ResolvedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	return nil
}

// ListByUser возвращает споры по заказам, где пользователь — сторона.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	query := `
		SELECT d.* FROM disputes d
		JOIN orders o ON o.id = d.order_id
		WHERE o.client_id = $1 OR o.executor_id = $1
		ORDER BY d.created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &disputes, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListOpen возвращает неразрешённые споры для админской очереди.
func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	query := `SELECT * FROM disputes WHERE status <> $1 ORDER BY created_at LIMIT $2 OFFSET $3`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &disputes, query, models.DisputeStatusResolved, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list open %w", err)
	}
	return disputes, nil
}

// AddEvidence добавляет доказательство к спору.
func (r *DisputeRepository) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	query := `
		INSERT INTO dispute_evidence (dispute_id, uploader_id, file_path, file_name, file_size, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := common.Queryer(ctx, r.db).QueryRowxContext(ctx, query,
		e.DisputeID, e.UploaderID, e.FilePath, e.FileName, e.FileSize, e.Comment).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: add evidence %w", err)
	}
	return nil
}

// ListEvidence возвращает доказательства спора.
func (r *DisputeRepository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	var evidence []models.DisputeEvidence
	query := `SELECT * FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &evidence, query, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list evidence %w", err)
	}
	return evidence, nil
}
