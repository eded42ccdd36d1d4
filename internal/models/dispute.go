package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы спора. UNDER_REVIEW опционален: админ может разрешить спор
// напрямую из OPEN.
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
)

// Вердикты спора.
const (
	DisputeResolutionFavorClient   = "favor_client"
	DisputeResolutionFavorExecutor = "favor_executor"
)

// Dispute описывает арбитражную эскалацию, привязанную 1:1 к заказу.
// Единственность обеспечивается уникальным индексом на order_id.
type Dispute struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OrderID         uuid.UUID  `db:"order_id" json:"order_id"`
	OpenerID        uuid.UUID  `db:"opener_id" json:"opener_id"`
	Reason          string     `db:"reason" json:"reason"`
	Status          string     `db:"status" json:"status"`
	AdminID         *uuid.UUID `db:"admin_id" json:"admin_id,omitempty"`
	AdminNotes      *string    `db:"admin_notes" json:"-"`
	Resolution      *string    `db:"resolution" json:"resolution,omitempty"`
	ResolutionNotes *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	RoomID          *uuid.UUID `db:"room_id" json:"room_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DisputeEvidence описывает файл-доказательство, приложенный к спору.
// Коллекция append-only и закрывается после разрешения спора.
type DisputeEvidence struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DisputeID  uuid.UUID `db:"dispute_id" json:"dispute_id"`
	UploaderID uuid.UUID `db:"uploader_id" json:"uploader_id"`
	FilePath   string    `db:"file_path" json:"file_path"`
	FileName   string    `db:"file_name" json:"file_name"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
