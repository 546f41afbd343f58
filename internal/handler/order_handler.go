package handler

import (
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderItemRequest struct {
	Product  int64 `json:"product"`
	Quantity int64 `json:"quantity"`
}

type OrderCreateRequest struct {
	Status string             `json:"status"`
	Items  []OrderItemRequest `json:"items"`
}

// Itemsがnil（キーなし）と空配列を区別するためポインタにする
type OrderUpdateRequest struct {
	Status *string             `json:"status"`
	Items  *[]OrderItemRequest `json:"items"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)

	//PUTもPATCHも部分更新（status省略=変更なし、items省略=明細そのまま）
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)

	g.DELETE("/:id", h.remove)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//所有者は呼び出し元に固定（bodyのuserは受け取らない）
	out, err := h.uc.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		Status: req.Status,
		Items:  toItemInputs(req.Items),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role := getUserRoleFromContext(c)

	in := usecase.ListOrdersInput{
		Status: c.QueryParam("status"),
	}

	//作成日は「日」単位（YYYY-MM-DD）
	fields := map[string]string{}
	in.CreatedDate = parseDateParam(c, "created_at", fields)
	in.CreatedDateLT = parseDateParam(c, "created_at__lt", fields)
	in.CreatedDateGT = parseDateParam(c, "created_at__gt", fields)
	if len(fields) > 0 {
		return writeError(c, usecase.NewValidationError(fields))
	}

	out, err := h.uc.ListOrders(c.Request().Context(), userID, role, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role := getUserRoleFromContext(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetOrder(c.Request().Context(), userID, role, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) update(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role := getUserRoleFromContext(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req OrderUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in := usecase.UpdateOrderInput{Status: req.Status}
	if req.Items != nil {
		items := toItemInputs(*req.Items)
		in.Items = &items
	}

	out, err := h.uc.UpdateOrder(c.Request().Context(), userID, role, orderID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) remove(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role := getUserRoleFromContext(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.uc.DeleteOrder(c.Request().Context(), userID, role, orderID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toItemInputs(items []OrderItemRequest) []usecase.OrderItemInput {
	out := make([]usecase.OrderItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, usecase.OrderItemInput{
			ProductID: it.Product,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func parseDateParam(c echo.Context, name string, fields map[string]string) *time.Time {
	v := c.QueryParam(name)
	if v == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		fields[name] = "must be YYYY-MM-DD"
		return nil
	}
	return &t
}

// middlewareがcontextへ入れた値を取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	id, ok := v.(int64)
	return id, ok
}

func getUserRoleFromContext(c echo.Context) model.Role {
	v := c.Get(middleware.CtxUserRoleKey)
	if s, ok := v.(string); ok {
		return model.Role(s)
	}
	return model.RoleUser
}
