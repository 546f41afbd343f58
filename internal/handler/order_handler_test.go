package handler_test

import (
	"net/http"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersRequireAuth(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/orders", "", handler.OrderCreateRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderComputesTotal(t *testing.T) {
	e, s := newTestServer(t)
	user := seedUser(s, "alice", model.RoleUser)
	pen := seedProduct(s, "pen", "1.50", 10)
	bag := seedProduct(s, "bag", "11.00", 3)

	body := handler.OrderCreateRequest{
		Items: []handler.OrderItemRequest{
			{Product: pen.ID, Quantity: 2},
			{Product: bag.ID, Quantity: 2},
		},
	}
	rec := doJSON(t, e, http.MethodPost, "/orders", issueToken(user.ID, string(user.Role)), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out usecase.OrderOutput
	decodeJSON(t, rec, &out)
	assert.Equal(t, user.ID, out.User)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	require.Len(t, out.Items, 2)
	assert.True(t, out.TotalPrice.Equal(decimal.RequireFromString("25.00")), "total=%s", out.TotalPrice)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	e, s := newTestServer(t)
	user := seedUser(s, "alice", model.RoleUser)

	body := handler.OrderCreateRequest{
		Items: []handler.OrderItemRequest{{Product: 999, Quantity: 1}},
	}
	rec := doJSON(t, e, http.MethodPost, "/orders", issueToken(user.ID, string(user.Role)), body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp handler.ErrorResponse
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp.Fields, "items[0].product")

	//失敗した注文は一切残らない
	assert.Empty(t, s.orders)
	assert.Empty(t, s.items)
}

func TestListOrdersScopedToCaller(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)
	bob := seedUser(s, "bob", model.RoleUser)
	staff := seedUser(s, "boss", model.RoleAdmin)
	pen := seedProduct(s, "pen", "1.50", 10)

	body := handler.OrderCreateRequest{Items: []handler.OrderItemRequest{{Product: pen.ID, Quantity: 1}}}
	for _, u := range []model.User{alice, alice, bob} {
		rec := doJSON(t, e, http.MethodPost, "/orders", issueToken(u.ID, string(u.Role)), body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	//一般ユーザーには自分の注文だけ見える
	rec := doJSON(t, e, http.MethodGet, "/orders", issueToken(alice.ID, string(alice.Role)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got usecase.OrderListOutput
	decodeJSON(t, rec, &got)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(2), got.Total)
	for _, o := range got.Items {
		assert.Equal(t, alice.ID, o.User)
	}

	//スタッフは全件
	rec = doJSON(t, e, http.MethodGet, "/orders", issueToken(staff.ID, string(staff.Role)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &got)
	assert.Len(t, got.Items, 3)
	assert.Equal(t, int64(3), got.Total)
}

func TestGetForeignOrderIsNotFound(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)
	bob := seedUser(s, "bob", model.RoleUser)
	pen := seedProduct(s, "pen", "1.50", 10)

	body := handler.OrderCreateRequest{Items: []handler.OrderItemRequest{{Product: pen.ID, Quantity: 1}}}
	rec := doJSON(t, e, http.MethodPost, "/orders", issueToken(alice.ID, string(alice.Role)), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created usecase.OrderOutput
	decodeJSON(t, rec, &created)

	//他人の注文は存在自体を教えない
	rec = doJSON(t, e, http.MethodGet, "/orders/"+created.OrderID.String(), issueToken(bob.ID, string(bob.Role)), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	//本人には見える
	rec = doJSON(t, e, http.MethodGet, "/orders/"+created.OrderID.String(), issueToken(alice.ID, string(alice.Role)), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrderInvalidID(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)

	rec := doJSON(t, e, http.MethodGet, "/orders/not-a-uuid", issueToken(alice.ID, string(alice.Role)), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderReplaceSemantics(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)
	pen := seedProduct(s, "pen", "1.50", 10)
	bag := seedProduct(s, "bag", "11.00", 3)

	body := handler.OrderCreateRequest{
		Items: []handler.OrderItemRequest{{Product: pen.ID, Quantity: 2}, {Product: bag.ID, Quantity: 1}},
	}
	token := issueToken(alice.ID, string(alice.Role))
	rec := doJSON(t, e, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created usecase.OrderOutput
	decodeJSON(t, rec, &created)
	path := "/orders/" + created.OrderID.String()

	//itemsを省略した更新は明細に触らない
	confirmed := string(model.OrderStatusConfirmed)
	rec = doJSON(t, e, http.MethodPut, path, token, handler.OrderUpdateRequest{Status: &confirmed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated usecase.OrderOutput
	decodeJSON(t, rec, &updated)
	assert.Equal(t, confirmed, updated.Status)
	assert.Len(t, updated.Items, 2)

	//空配列は全明細の削除
	empty := []handler.OrderItemRequest{}
	rec = doJSON(t, e, http.MethodPut, path, token, handler.OrderUpdateRequest{Items: &empty})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &updated)
	assert.Empty(t, updated.Items)
	assert.True(t, updated.TotalPrice.IsZero())
}

// Test: PATCHでstatusだけ変えても明細はそのまま
func TestPatchOrderStatusOnly(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)
	pen := seedProduct(s, "pen", "1.50", 10)

	token := issueToken(alice.ID, string(alice.Role))
	body := handler.OrderCreateRequest{Items: []handler.OrderItemRequest{{Product: pen.ID, Quantity: 2}}}
	rec := doJSON(t, e, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created usecase.OrderOutput
	decodeJSON(t, rec, &created)

	confirmed := string(model.OrderStatusConfirmed)
	rec = doJSON(t, e, http.MethodPatch, "/orders/"+created.OrderID.String(), token, handler.OrderUpdateRequest{Status: &confirmed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated usecase.OrderOutput
	decodeJSON(t, rec, &updated)
	assert.Equal(t, confirmed, updated.Status)
	require.Len(t, updated.Items, 1)
	assert.True(t, updated.TotalPrice.Equal(decimal.RequireFromString("3.00")))
}

// Test: statusと作成日（日単位）のフィルタ
func TestListOrdersStatusAndDateFilter(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)
	pen := seedProduct(s, "pen", "1.50", 10)

	token := issueToken(alice.ID, string(alice.Role))
	body := handler.OrderCreateRequest{Items: []handler.OrderItemRequest{{Product: pen.ID, Quantity: 1}}}

	var first usecase.OrderOutput
	rec := doJSON(t, e, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeJSON(t, rec, &first)
	rec = doJSON(t, e, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	//1件だけConfirmedにする
	confirmed := string(model.OrderStatusConfirmed)
	rec = doJSON(t, e, http.MethodPatch, "/orders/"+first.OrderID.String(), token, handler.OrderUpdateRequest{Status: &confirmed})
	require.Equal(t, http.StatusOK, rec.Code)

	today := time.Now().Format("2006-01-02")

	//status＋作成日の組み合わせ
	rec = doJSON(t, e, http.MethodGet, "/orders?status=Confirmed&created_at="+today, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got usecase.OrderListOutput
	decodeJSON(t, rec, &got)
	require.Len(t, got.Items, 1)
	assert.Equal(t, confirmed, got.Items[0].Status)
	assert.Equal(t, int64(1), got.Total)

	//今日より後に作られた注文は無い
	rec = doJSON(t, e, http.MethodGet, "/orders?created_at__gt="+today, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &got)
	assert.Empty(t, got.Items)
	assert.Equal(t, int64(0), got.Total)

	//日付として読めない値は400
	rec = doJSON(t, e, http.MethodGet, "/orders?created_at=not-a-date", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	//存在しないstatusは400
	rec = doJSON(t, e, http.MethodGet, "/orders?status=Shipped", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOrder(t *testing.T) {
	e, s := newTestServer(t)
	alice := seedUser(s, "alice", model.RoleUser)
	pen := seedProduct(s, "pen", "1.50", 10)

	token := issueToken(alice.ID, string(alice.Role))
	body := handler.OrderCreateRequest{Items: []handler.OrderItemRequest{{Product: pen.ID, Quantity: 1}}}
	rec := doJSON(t, e, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created usecase.OrderOutput
	decodeJSON(t, rec, &created)

	rec = doJSON(t, e, http.MethodDelete, "/orders/"+created.OrderID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Empty(t, s.orders)
	assert.Empty(t, s.items)

	rec = doJSON(t, e, http.MethodGet, "/orders/"+created.OrderID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
