package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// statusとして許可される値か
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

// total_priceは列に持たない。常に明細から再計算する。
type Order struct {
	OrderID uuid.UUID `gorm:"type:uuid;primaryKey" json:"order_id"`
	UserID  int64     `gorm:"not null;index" json:"user_id"`

	Status OrderStatus `gorm:"type:varchar(10);not null;default:'Pending'" json:"status"`

	//作成時に一度だけ設定
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`

	//注文削除で明細も消える
	Items []OrderItem `gorm:"foreignKey:OrderID;references:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}
