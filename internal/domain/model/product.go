package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	//価格は境界で>=0を検証する（DB制約ではない）
	Price decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Stock int64           `gorm:"not null" json:"stock"`

	//商品画像の置き場所（任意）
	ImageURL string `gorm:"type:varchar(500)" json:"image_url"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	//商品削除で注文明細も消える
	OrderItems []OrderItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

// 在庫があるかどうか。列には保存しない。
func (p *Product) InStock() bool {
	return p.Stock > 0
}
