package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UUID等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type OrderUsecase struct {
	tx    repo.TransactionManager
	idGen IDGenerator
	clock Clock
}

func NewOrderUsecase(tx repo.TransactionManager, idGen IDGenerator, clock Clock) *OrderUsecase {
	return &OrderUsecase{tx: tx, idGen: idGen, clock: clock}
}

type OrderItemInput struct {
	ProductID int64
	Quantity  int64
}

type PlaceOrderInput struct {
	//空ならPending
	Status string
	Items  []OrderItemInput
}

// statusがnilなら変更しない。
// Itemsがnilなら明細はそのまま。空スライスなら全明細を削除する。
type UpdateOrderInput struct {
	Status *string
	Items  *[]OrderItemInput
}

type ListOrdersInput struct {
	Status string

	CreatedDate   *time.Time
	CreatedDateLT *time.Time
	CreatedDateGT *time.Time
}

type OrderItemOutput struct {
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int64           `json:"quantity"`
	ItemSubtotal decimal.Decimal `json:"item_subtotal"`
}

// total_priceは保存値ではなく毎回の再計算
type OrderOutput struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CreatedAt  time.Time         `json:"created_at"`
	User       int64             `json:"user"`
	Status     string            `json:"status"`
	Items      []OrderItemOutput `json:"items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
}

// 注文作成。注文行と全明細を1つのトランザクションで入れる。
// どれか1件でも失敗したら全体をrollbackする。
// 所有者は認証済みの呼び出し元に固定（クライアントからは指定できない）。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	status := model.OrderStatusPending
	if in.Status != "" {
		status = model.OrderStatus(in.Status)
		if !status.Valid() {
			return OrderOutput{}, NewValidationError(map[string]string{
				"status": "must be one of Pending, Confirmed, Cancelled",
			})
		}
	}

	orderID, err := uuid.Parse(u.idGen.NewID())
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "id generation failed")
	}

	var out OrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, details, err := u.buildItems(ctx, r, in.Items)
		if err != nil {
			return err
		}

		//注文→明細の順（明細は注文が無いと入らない）
		now := u.clock.Now()
		order := model.Order{
			OrderID:   orderID,
			UserID:    userID,
			Status:    status,
			CreatedAt: now,
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(order, details)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 明細入力を検証して、挿入用の行と表示用の行を作る。
// 数量0以下・存在しない商品はここで弾く（トランザクションごと中断される）。
func (u *OrderUsecase) buildItems(ctx context.Context, r repo.TxRepos, in []OrderItemInput) ([]model.OrderItem, []repo.OrderItemDetail, error) {
	items := make([]model.OrderItem, 0, len(in))
	details := make([]repo.OrderItemDetail, 0, len(in))

	for i, it := range in {
		if it.Quantity <= 0 {
			return nil, nil, NewValidationError(map[string]string{
				fmt.Sprintf("items[%d].quantity", i): "must be > 0",
			})
		}

		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, NewValidationError(map[string]string{
				fmt.Sprintf("items[%d].product", i): "product does not exist",
			})
		}
		if err != nil {
			return nil, nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
		details = append(details, repo.OrderItemDetail{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     it.Quantity,
		})
	}

	return items, details, nil
}

// 一覧。スタッフ以外は自分の注文だけ（絞り込みより先に所有者で狭める）。
func (u *OrderUsecase) ListOrders(ctx context.Context, userID int64, role model.Role, in ListOrdersInput) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Status != "" && !model.OrderStatus(in.Status).Valid() {
		return OrderListOutput{}, NewValidationError(map[string]string{
			"status": "must be one of Pending, Confirmed, Cancelled",
		})
	}

	f := repo.OrderListFilter{
		Status:        in.Status,
		CreatedDate:   in.CreatedDate,
		CreatedDateLT: in.CreatedDateLT,
		CreatedDateGT: in.CreatedDateGT,
	}
	if role != model.RoleAdmin {
		f.UserID = &userID
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			details, err := r.OrderItems().ListDetailByOrderID(ctx, o.OrderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, details))
		}

		out = OrderListOutput{Items: outs, Total: total}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, userID int64, role model.Role, orderID uuid.UUID) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.findOwnedOrder(ctx, r, userID, role, orderID)
		if err != nil {
			return err
		}

		details, err := r.OrderItems().ListDetailByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, details)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文更新。statusの変更と明細の入れ替えを1つのトランザクションで行う。
// 明細は部分更新ではなく全入れ替え。旧明細だけ消えた状態は外から見えない。
func (u *OrderUsecase) UpdateOrder(ctx context.Context, userID int64, role model.Role, orderID uuid.UUID, in UpdateOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if in.Status != nil && !model.OrderStatus(*in.Status).Valid() {
		return OrderOutput{}, NewValidationError(map[string]string{
			"status": "must be one of Pending, Confirmed, Cancelled",
		})
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.findOwnedOrder(ctx, r, userID, role, orderID)
		if err != nil {
			return err
		}

		if in.Status != nil {
			if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatus(*in.Status)); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			o.Status = model.OrderStatus(*in.Status)
		}

		//Itemsが来ていたら全入れ替え（空リストなら全削除のみ）
		if in.Items != nil {
			items, _, err := u.buildItems(ctx, r, *in.Items)
			if err != nil {
				return err
			}

			if err := r.OrderItems().DeleteByOrderID(ctx, orderID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		details, err := r.OrderItems().ListDetailByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, details)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文削除。明細→注文の順に消す。
func (u *OrderUsecase) DeleteOrder(ctx context.Context, userID int64, role model.Role, orderID uuid.UUID) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := u.findOwnedOrder(ctx, r, userID, role, orderID); err != nil {
			return err
		}

		if err := r.OrderItems().DeleteByOrderID(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Orders().Delete(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
}

// 取得＋所有チェック。
// 他人の注文は「存在しない扱い」にする（スタッフは全件見える）。
func (u *OrderUsecase) findOwnedOrder(ctx context.Context, r repo.TxRepos, userID int64, role model.Role, orderID uuid.UUID) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if role != model.RoleAdmin && o.UserID != userID {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return o, nil
}

func toOrderOutput(o model.Order, details []repo.OrderItemDetail) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(details))
	total := decimal.Zero

	for _, d := range details {
		subtotal := model.Subtotal(d.ProductPrice, d.Quantity)
		total = total.Add(subtotal)
		outItems = append(outItems, OrderItemOutput{
			ProductName:  d.ProductName,
			ProductPrice: d.ProductPrice,
			Quantity:     d.Quantity,
			ItemSubtotal: subtotal,
		})
	}

	return OrderOutput{
		OrderID:    o.OrderID,
		CreatedAt:  o.CreatedAt,
		User:       o.UserID,
		Status:     string(o.Status),
		Items:      outItems,
		TotalPrice: total,
	}
}
