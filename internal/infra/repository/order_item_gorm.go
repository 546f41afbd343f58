package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return err
	}
	return nil
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

// 明細を商品と結合して返す。価格は現在のproducts.price。
func (r *OrderItemGormRepository) ListDetailByOrderID(ctx context.Context, orderID uuid.UUID) ([]repo.OrderItemDetail, error) {
	var details []repo.OrderItemDetail
	err := r.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.product_id, products.name AS product_name, products.price AS product_price, order_items.quantity").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Order("order_items.id asc").
		Scan(&details).Error
	if err != nil {
		return []repo.OrderItemDetail{}, err
	}
	return details, nil
}

// 入れ替え更新用。0件削除もエラーにしない。
func (r *OrderItemGormRepository) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error
}
