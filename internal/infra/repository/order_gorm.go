package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID uuid.UUID) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// 絞り込み付きの一覧。UserIDがnilなら全件（スタッフ用）。
// 日付は DATE(created_at) で「日」単位に切り捨てて比較する。
func (r *OrderGormRepository) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})

	//所有者で絞る（権限境界。フィルタより先に適用される）
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//status絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//作成日絞り込み
	if f.CreatedDate != nil {
		q = q.Where("DATE(created_at) = ?", f.CreatedDate.Format("2006-01-02"))
	}
	if f.CreatedDateLT != nil {
		q = q.Where("DATE(created_at) < ?", f.CreatedDateLT.Format("2006-01-02"))
	}
	if f.CreatedDateGT != nil {
		q = q.Where("DATE(created_at) > ?", f.CreatedDateGT.Format("2006-01-02"))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	if err := q.Order("created_at desc").Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) error {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return err
	}
	return nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) Delete(ctx context.Context, orderID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
