package repository

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// フィルタ・検索・ソート・ページング付きの一覧。
// 条件の組み立て順: 絞り込み → 件数 → 並び替え → limit/offset
func (r *ProductGormRepository) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	//name完全一致
	if q.Name != "" {
		tx = tx.Where("name = ?", q.Name)
	}

	//nameの部分一致
	if strings.TrimSpace(q.NameContains) != "" {
		like := "%" + strings.TrimSpace(q.NameContains) + "%"
		tx = tx.Where("name ILIKE ?", like)
	}

	//価格帯
	if q.Price != nil {
		tx = tx.Where("price = ?", *q.Price)
	}
	if q.PriceLT != nil {
		tx = tx.Where("price < ?", *q.PriceLT)
	}
	if q.PriceGT != nil {
		tx = tx.Where("price > ?", *q.PriceGT)
	}
	if q.PriceRangeMin != nil && q.PriceRangeMax != nil {
		tx = tx.Where("price BETWEEN ? AND ?", *q.PriceRangeMin, *q.PriceRangeMax)
	}

	//search: descriptionの部分一致 OR nameの完全一致
	if strings.TrimSpace(q.Search) != "" {
		s := strings.TrimSpace(q.Search)
		tx = tx.Where("description ILIKE ? OR name = ?", "%"+s+"%", s)
	}

	//在庫ありだけ
	if q.InStockOnly {
		tx = tx.Where("stock > ?", 0)
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	//sort（キーの検証はusecase側で済んでいる）
	for _, key := range q.Ordering {
		if col, ok := strings.CutPrefix(key, "-"); ok {
			tx = tx.Order(col + " desc")
		} else {
			tx = tx.Order(key + " asc")
		}
	}
	if len(q.Ordering) == 0 {
		tx = tx.Order("id asc")
	}

	if err := tx.Limit(q.Limit).Offset(q.Offset).Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

// 全件（集計エンドポイント用、ページングなし）
func (r *ProductGormRepository) ListAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := r.db.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の更新
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"stock":       p.Stock,
		"image_url":   p.ImageURL,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 商品削除。order_itemsへのカスケードはDBの外部キー制約に任せる。
func (r *ProductGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// priceの最大値。商品が無ければ0。
func (r *ProductGormRepository) MaxPrice(ctx context.Context) (decimal.Decimal, error) {
	var max decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Select("MAX(price)").
		Scan(&max).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !max.Valid {
		return decimal.Zero, nil
	}
	return max.Decimal, nil
}
