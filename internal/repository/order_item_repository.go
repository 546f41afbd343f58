package repository

import (
	"context"

	"app/internal/domain/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 注文明細を商品と結合した読み出し用の行。
// 価格は保存時のスナップショットではなく、現在のproducts.price。
type OrderItemDetail struct {
	ProductID    int64
	ProductName  string
	ProductPrice decimal.Decimal
	Quantity     int64
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error)
	ListDetailByOrderID(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error)

	//注文の明細を全削除（入れ替え更新で使う）
	DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error
}
