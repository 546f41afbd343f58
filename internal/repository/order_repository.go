package repository

import (
	"context"
	"time"

	"app/internal/domain/model"

	"github.com/google/uuid"
)

// 注文一覧の条件。
// UserIDがnilなら全件（スタッフ用）。
// 日付は「日」単位で比較する（時刻は切り捨て）。
type OrderListFilter struct {
	UserID *int64
	Status string

	CreatedDate   *time.Time
	CreatedDateLT *time.Time
	CreatedDateGT *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (model.Order, error)
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}
