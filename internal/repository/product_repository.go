package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// 一覧検索の条件。
// 値の検証（数値でない価格など）はここに来る前に済ませておく。
type ProductListQuery struct {
	//name完全一致
	Name string
	//nameの部分一致
	NameContains string

	//価格の絞り込み
	Price         *decimal.Decimal
	PriceLT       *decimal.Decimal
	PriceGT       *decimal.Decimal
	PriceRangeMin *decimal.Decimal
	PriceRangeMax *decimal.Decimal

	//search: descriptionの部分一致 OR nameの完全一致
	Search string

	//name / price / stock（降順は先頭に-）
	Ordering []string

	//limit/offset方式。Limitの上限チェックはusecase側。
	Limit  int
	Offset int

	//在庫あり（stock > 0）だけに絞るか
	InStockOnly bool
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	ListAll(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, id int64) error

	//集計: priceの最大値。商品が無ければ0。
	MaxPrice(ctx context.Context) (decimal.Decimal, error)
}
