package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// txKey — ключ контекста для активной транзакции.
type txKey struct{}

// Transactor выполняет функцию внутри одной атомарной единицы работы.
// Каждая публичная операция сервисного слоя владеет ровно одной
// транзакцией и явно выстраивает в ней вызовы репозиториев.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxManager реализует Transactor поверх sqlx, пряча транзакцию в контекст.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager создаёт менеджер транзакций.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx начинает транзакцию, кладёт её в контекст и коммитит после
// успешного выполнения fn. При ошибке или панике откатывает.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Вложенный вызов переиспользует уже открытую транзакцию.
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func txFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// Queryer возвращает активную транзакцию из контекста либо само
// соединение. Репозитории берут исполнитель запросов отсюда, поэтому
// один WithinTx сервисного уровня охватывает записи нескольких
// репозиториев.
func Queryer(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}

// IsUniqueViolation проверяет, является ли ошибка нарушением уникального
// ограничения PostgreSQL (код 23505). Если constraint не пустой,
// дополнительно сверяется имя ограничения.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
