package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

type HTTPError struct {
	Status  int
	Message string

	//フィールド単位のエラー（validationのときだけ入る）
	Fields map[string]string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 400＋フィールド別メッセージ
func NewValidationError(fields map[string]string) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: "validation error",
		Fields:  fields,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 1ページの上限。numberで大きい値を要求されてもここで頭打ち。
const MaxPageSize = 5

type ProductUsecase struct {
	productRepo repo.ProductRepository
	auditRepo   repo.AuditLogRepository
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	auditRepo repo.AuditLogRepository,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		auditRepo:   auditRepo,
	}
}

// GET /productsの入力DTO
// 価格はhandlerで数値に変換済み（変換失敗はhandlerが400にする）
type ListProductsInput struct {
	Name         string
	NameContains string
	Search       string

	Price         *decimal.Decimal
	PriceLT       *decimal.Decimal
	PriceGT       *decimal.Decimal
	PriceRangeMin *decimal.Decimal
	PriceRangeMax *decimal.Decimal

	Ordering []string

	//limitに相当するパラメータ。nilならサーバー上限。
	Number *int
	Offset int

	InStockOnly bool
}

type ProductOutput struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	InStock     bool            `json:"in_stock"`
	ImageURL    string          `json:"image_url,omitempty"`
}

type ProductListOutput struct {
	Items  []ProductOutput `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// 集計（全商品＋件数＋最高価格）
type ProductInfoOutput struct {
	Products []ProductOutput `json:"products"`
	Count    int             `json:"count"`
	MaxPrice decimal.Decimal `json:"max_price"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	//並び替えキーの検証（name / price / stock、降順は-）
	for _, key := range in.Ordering {
		col := strings.TrimPrefix(key, "-")
		switch col {
		case "name", "price", "stock":
		default:
			return ProductListOutput{}, NewValidationError(map[string]string{
				"ordering": fmt.Sprintf("unknown ordering key: %s", key),
			})
		}
	}

	//numberはサーバー上限で頭打ち
	limit := MaxPageSize
	if in.Number != nil {
		if *in.Number < 1 {
			return ProductListOutput{}, NewValidationError(map[string]string{
				"number": "must be >= 1",
			})
		}
		if *in.Number < MaxPageSize {
			limit = *in.Number
		}
	}

	if in.Offset < 0 {
		return ProductListOutput{}, NewValidationError(map[string]string{
			"offset": "must be >= 0",
		})
	}

	if in.PriceRangeMin != nil && in.PriceRangeMax != nil && in.PriceRangeMin.GreaterThan(*in.PriceRangeMax) {
		return ProductListOutput{}, NewValidationError(map[string]string{
			"price__range": "min must be <= max",
		})
	}

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Name:          in.Name,
		NameContains:  strings.TrimSpace(in.NameContains),
		Price:         in.Price,
		PriceLT:       in.PriceLT,
		PriceGT:       in.PriceGT,
		PriceRangeMin: in.PriceRangeMin,
		PriceRangeMax: in.PriceRangeMax,
		Search:        strings.TrimSpace(in.Search),
		Ordering:      in.Ordering,
		Limit:         limit,
		Offset:        in.Offset,
		InStockOnly:   in.InStockOnly,
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]ProductOutput, 0, len(items))
	for _, p := range items {
		outs = append(outs, toProductOutput(p))
	}

	//範囲外のoffsetは空の結果（エラーにしない）
	return ProductListOutput{
		Items:  outs,
		Total:  total,
		Limit:  limit,
		Offset: in.Offset,
	}, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (ProductOutput, error) {
	if productID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toProductOutput(p), nil
}

// GET /products/info
func (u *ProductUsecase) GetProductInfo(ctx context.Context) (ProductInfoOutput, error) {
	products, err := u.productRepo.ListAll(ctx)
	if err != nil {
		return ProductInfoOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	maxPrice, err := u.productRepo.MaxPrice(ctx)
	if err != nil {
		return ProductInfoOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]ProductOutput, 0, len(products))
	for _, p := range products {
		outs = append(outs, toProductOutput(p))
	}

	return ProductInfoOutput{
		Products: outs,
		Count:    len(products),
		MaxPrice: maxPrice,
	}, nil
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int64
	ImageURL    string
}

// 保存前のフィールド検証。違反は部分保存なしで弾く。
func validateProductInput(in ProductInput) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if in.Price.IsNegative() {
		fields["price"] = "must be >= 0"
	}
	if in.Stock < 0 {
		fields["stock"] = "must be >= 0"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, adminUserID int64, in ProductInput) (ProductOutput, error) {
	if adminUserID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if fields := validateProductInput(in); fields != nil {
		return ProductOutput{}, NewValidationError(fields)
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
	})
	if err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//監査ログ（CREATE_PRODUCT）
	if err := u.writeAudit(ctx, adminUserID, model.AuditActionCreateProduct, p.ID, model.Product{}, p); err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toProductOutput(p), nil
}

func (u *ProductUsecase) UpdateProduct(ctx context.Context, adminUserID int64, productID int64, in ProductInput) (ProductOutput, error) {
	if adminUserID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if fields := validateProductInput(in); fields != nil {
		return ProductOutput{}, NewValidationError(fields)
	}

	//変更前（before）
	before, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	after := model.Product{
		ID:          productID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
	}

	err = u.productRepo.Update(ctx, after)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//監査ログ（UPDATE_PRODUCT）
	if err := u.writeAudit(ctx, adminUserID, model.AuditActionUpdateProduct, productID, before, after); err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toProductOutput(after), nil
}

// PATCH用の入力。nilのフィールドは現在値を保つ。
type ProductPatchInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int64
	ImageURL    *string
}

// 部分更新。送られたフィールドだけ上書きし、マージ後の値を検証する。
func (u *ProductUsecase) PatchProduct(ctx context.Context, adminUserID int64, productID int64, in ProductPatchInput) (ProductOutput, error) {
	if adminUserID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	before, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	merged := ProductInput{
		Name:        before.Name,
		Description: before.Description,
		Price:       before.Price,
		Stock:       before.Stock,
		ImageURL:    before.ImageURL,
	}
	if in.Name != nil {
		merged.Name = *in.Name
	}
	if in.Description != nil {
		merged.Description = *in.Description
	}
	if in.Price != nil {
		merged.Price = *in.Price
	}
	if in.Stock != nil {
		merged.Stock = *in.Stock
	}
	if in.ImageURL != nil {
		merged.ImageURL = *in.ImageURL
	}

	if fields := validateProductInput(merged); fields != nil {
		return ProductOutput{}, NewValidationError(fields)
	}

	after := model.Product{
		ID:          productID,
		Name:        strings.TrimSpace(merged.Name),
		Description: merged.Description,
		Price:       merged.Price,
		Stock:       merged.Stock,
		ImageURL:    merged.ImageURL,
	}

	err = u.productRepo.Update(ctx, after)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//監査ログ（UPDATE_PRODUCT）
	if err := u.writeAudit(ctx, adminUserID, model.AuditActionUpdateProduct, productID, before, after); err != nil {
		return ProductOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toProductOutput(after), nil
}

func (u *ProductUsecase) DeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	before, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	err = u.productRepo.Delete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//監査ログ（DELETE_PRODUCT）
	if err := u.writeAudit(ctx, adminUserID, model.AuditActionDeleteProduct, productID, before, model.Product{}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return nil
}

// 「誰が」「何を」「どの対象に」「どう変えたか」を残す
func (u *ProductUsecase) writeAudit(ctx context.Context, actorID int64, action model.AuditAction, resourceID int64, before, after model.Product) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return err
	}

	return u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   resourceID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    time.Now(),
	})
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		InStock:     p.InStock(),
		ImageURL:    p.ImageURL,
	}
}
