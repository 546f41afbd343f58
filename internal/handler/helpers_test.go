package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	repo "app/internal/repository"
	"app/internal/server"
	"app/internal/usecase"
	auth "app/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret"

// DBなしでhandler〜usecase〜repoを通すためのインメモリ実装
type memStore struct {
	users    map[int64]model.User
	products map[int64]model.Product
	orders   map[uuid.UUID]model.Order
	items    map[uuid.UUID][]model.OrderItem
	audit    []model.AuditLog

	nextUser    int64
	nextProduct int64
	nextItem    int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]model.User{},
		products: map[int64]model.Product{},
		orders:   map[uuid.UUID]model.Order{},
		items:    map[uuid.UUID][]model.OrderItem{},
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.nextUser, c.nextProduct, c.nextItem = s.nextUser, s.nextProduct, s.nextItem
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		items := make([]model.OrderItem, len(v))
		copy(items, v)
		c.items[k] = items
	}
	c.audit = append(c.audit, s.audit...)
	return c
}

func (s *memStore) restore(from *memStore) {
	s.users, s.products, s.orders, s.items = from.users, from.products, from.orders, from.items
	s.audit = from.audit
	s.nextUser, s.nextProduct, s.nextItem = from.nextUser, from.nextProduct, from.nextItem
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.nextUser++
	u.ID = r.s.nextUser
	r.s.users[u.ID] = *u
	return nil
}
func (r *memUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

type memProductRepo struct{ s *memStore }

// SQLと同じ絞り込みをメモリ上で再現する
func (r *memProductRepo) List(_ context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var all []model.Product
	for _, p := range r.s.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	var filtered []model.Product
	for _, p := range all {
		if q.Name != "" && p.Name != q.Name {
			continue
		}
		if q.NameContains != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.NameContains)) {
			continue
		}
		if q.Price != nil && !p.Price.Equal(*q.Price) {
			continue
		}
		if q.PriceLT != nil && p.Price.GreaterThanOrEqual(*q.PriceLT) {
			continue
		}
		if q.PriceGT != nil && p.Price.LessThanOrEqual(*q.PriceGT) {
			continue
		}
		if q.PriceRangeMin != nil && q.PriceRangeMax != nil {
			if p.Price.LessThan(*q.PriceRangeMin) || p.Price.GreaterThan(*q.PriceRangeMax) {
				continue
			}
		}
		if q.Search != "" {
			s := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(p.Description), s) && p.Name != q.Search {
				continue
			}
		}
		if q.InStockOnly && p.Stock <= 0 {
			continue
		}
		filtered = append(filtered, p)
	}

	total := int64(len(filtered))

	//offset/limitの窓
	if q.Offset >= len(filtered) {
		return []model.Product{}, total, nil
	}
	filtered = filtered[q.Offset:]
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, total, nil
}

func (r *memProductRepo) ListAll(_ context.Context) ([]model.Product, error) {
	var all []model.Product
	for _, p := range r.s.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *memProductRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProductRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	r.s.nextProduct++
	p.ID = r.s.nextProduct
	r.s.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) Update(_ context.Context, p model.Product) error {
	if _, ok := r.s.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.products[p.ID] = p
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.s.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (r *memProductRepo) MaxPrice(_ context.Context) (decimal.Decimal, error) {
	max := decimal.Zero
	for _, p := range r.s.products {
		if p.Price.GreaterThan(max) {
			max = p.Price
		}
	}
	return max, nil
}

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) FindByID(_ context.Context, orderID uuid.UUID) (model.Order, error) {
	o, ok := r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *memOrderRepo) List(_ context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range r.s.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.CreatedDate != nil && !sameDate(o.CreatedAt, *f.CreatedDate) {
			continue
		}
		if f.CreatedDateLT != nil && !truncDate(o.CreatedAt).Before(truncDate(*f.CreatedDateLT)) {
			continue
		}
		if f.CreatedDateGT != nil && !truncDate(o.CreatedAt).After(truncDate(*f.CreatedDateGT)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func truncDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	return truncDate(a).Equal(truncDate(b))
}

func (r *memOrderRepo) Create(_ context.Context, order model.Order) error {
	r.s.orders[order.OrderID] = order
	return nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status model.OrderStatus) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[orderID] = o
	return nil
}

func (r *memOrderRepo) Delete(_ context.Context, orderID uuid.UUID) error {
	if _, ok := r.s.orders[orderID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.orders, orderID)
	return nil
}

type memOrderItemRepo struct{ s *memStore }

func (r *memOrderItemRepo) CreateBulk(_ context.Context, orderID uuid.UUID, items []model.OrderItem) error {
	for _, it := range items {
		r.s.nextItem++
		it.ID = r.s.nextItem
		it.OrderID = orderID
		r.s.items[orderID] = append(r.s.items[orderID], it)
	}
	return nil
}

func (r *memOrderItemRepo) ListByOrderID(_ context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	return r.s.items[orderID], nil
}

func (r *memOrderItemRepo) ListDetailByOrderID(_ context.Context, orderID uuid.UUID) ([]repo.OrderItemDetail, error) {
	var out []repo.OrderItemDetail
	for _, it := range r.s.items[orderID] {
		p := r.s.products[it.ProductID]
		out = append(out, repo.OrderItemDetail{
			ProductID:    it.ProductID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     it.Quantity,
		})
	}
	return out, nil
}

func (r *memOrderItemRepo) DeleteByOrderID(_ context.Context, orderID uuid.UUID) error {
	delete(r.s.items, orderID)
	return nil
}

type memTxRepos struct{ s *memStore }

func (r *memTxRepos) Orders() repo.OrderRepository         { return &memOrderRepo{s: r.s} }
func (r *memTxRepos) OrderItems() repo.OrderItemRepository { return &memOrderItemRepo{s: r.s} }
func (r *memTxRepos) Products() repo.ProductRepository     { return &memProductRepo{s: r.s} }

type memTxManager struct{ s *memStore }

func (tm *memTxManager) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	backup := tm.s.clone()
	if err := fn(&memTxRepos{s: tm.s}); err != nil {
		tm.s.restore(backup)
		return err
	}
	return nil
}

type memAuditRepo struct{ s *memStore }

func (r *memAuditRepo) Create(_ context.Context, log model.AuditLog) error {
	r.s.audit = append(r.s.audit, log)
	return nil
}

type testIDGen struct{}

func (g *testIDGen) NewID() string { return uuid.NewString() }

type testClock struct{}

func (c *testClock) Now() time.Time { return time.Now() }

type testIssuer struct{}

func (i *testIssuer) Issue(userID int64, role model.Role, now time.Time) (string, time.Time, error) {
	return issueToken(userID, string(role)), now.Add(time.Hour), nil
}

func issueToken(userID int64, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString([]byte(testSecret))
	return signed
}

// echo一式をインメモリrepoの上に組み立てる
func newTestServer(t *testing.T) (*echo.Echo, *memStore) {
	t.Helper()

	cfg := config.Config{JWTSecret: testSecret, AccessTTL: time.Hour}
	s := newMemStore()

	userRepo := &memUserRepo{s: s}
	productRepo := &memProductRepo{s: s}
	auditRepo := &memAuditRepo{s: s}
	txManager := &memTxManager{s: s}

	registerUC := auth.NewRegisterUserUsecase(userRepo, auth.NewBcryptPasswordHasher(4))
	loginUC := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(), &testIssuer{}, &testClock{})
	productUC := usecase.NewProductUsecase(productRepo, auditRepo)
	orderUC := usecase.NewOrderUsecase(txManager, &testIDGen{}, &testClock{})

	handlers := server.Handlers{
		Auth:    handler.NewAuthHandler(registerUC, loginUC),
		Product: handler.NewProductHandler(productUC),
		Order:   handler.NewOrderHandler(orderUC),
	}

	e := echo.New()
	server.RegisterRoutes(e, cfg, handlers)
	return e, s
}

func seedUser(s *memStore, username string, role model.Role) model.User {
	s.nextUser++
	u := model.User{ID: s.nextUser, Username: username, Role: role}
	s.users[u.ID] = u
	return u
}

func seedProduct(s *memStore, name string, price string, stock int64) model.Product {
	s.nextProduct++
	p := model.Product{
		ID:    s.nextProduct,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	s.products[p.ID] = p
	return p
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body=%s", rec.Body.String())
}
