package handler

import (
	"net/http"
	"strconv"
	"strings"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Fields: he.Fields})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// /products のAPI。読み取りは公開、書き込みはADMINだけ。
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.GET("/products", h.list)
	e.GET("/products/info", h.info)
	e.GET("/products/:id", h.detail)

	//書き込みはJWT＋ADMINロール
	adminOnly := []echo.MiddlewareFunc{middleware.AuthJWT(cfg), middleware.AdminRoleGuard()}
	e.POST("/products", h.create, adminOnly...)
	e.PUT("/products/:id", h.update, adminOnly...)
	e.PATCH("/products/:id", h.patch, adminOnly...)
	e.DELETE("/products/:id", h.remove, adminOnly...)
}

// クエリパラメータを入力DTOへ。数値に出来ない値はここで400にする。
func (h *ProductHandler) list(c echo.Context) error {
	in := usecase.ListProductsInput{
		Name:         c.QueryParam("name"),
		NameContains: c.QueryParam("name__icontains"),
		Search:       c.QueryParam("search"),

		//公開一覧は在庫ありだけ見せる
		InStockOnly: true,
	}

	fields := map[string]string{}

	in.Price = parsePriceParam(c, "price", fields)
	in.PriceLT = parsePriceParam(c, "price__lt", fields)
	in.PriceGT = parsePriceParam(c, "price__gt", fields)

	//price__range=min,max
	if v := c.QueryParam("price__range"); v != "" {
		parts := strings.SplitN(v, ",", 2)
		if len(parts) != 2 {
			fields["price__range"] = "must be min,max"
		} else {
			min, err1 := decimal.NewFromString(strings.TrimSpace(parts[0]))
			max, err2 := decimal.NewFromString(strings.TrimSpace(parts[1]))
			if err1 != nil || err2 != nil {
				fields["price__range"] = "must be numbers"
			} else {
				in.PriceRangeMin = &min
				in.PriceRangeMax = &max
			}
		}
	}

	if v := c.QueryParam("ordering"); v != "" {
		in.Ordering = strings.Split(v, ",")
	}

	//limitに相当するパラメータはnumber
	if v := c.QueryParam("number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["number"] = "must be a number"
		} else {
			in.Number = &n
		}
	}

	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			fields["offset"] = "must be a number"
		} else {
			in.Offset = o
		}
	}

	//不正なフィルタ値はDBに触る前に拒否する
	if len(fields) > 0 {
		return writeError(c, usecase.NewValidationError(fields))
	}

	out, err := h.uc.ListProducts(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func parsePriceParam(c echo.Context, name string, fields map[string]string) *decimal.Decimal {
	v := c.QueryParam(name)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		fields[name] = "must be a number"
		return nil
	}
	return &d
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	p, err := h.uc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

// GET /products/info 集計（全商品＋件数＋最高価格）
func (h *ProductHandler) info(c echo.Context) error {
	out, err := h.uc.GetProductInfo(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	ImageURL    string          `json:"image_url"`
}

func (h *ProductHandler) create(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.CreateProduct(c.Request().Context(), adminID, usecase.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *ProductHandler) update(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.UpdateProduct(c.Request().Context(), adminID, id, usecase.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// PATCH用。nil（キーなし）のフィールドは現在値のまま。
type ProductPatchRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int64           `json:"stock"`
	ImageURL    *string          `json:"image_url"`
}

func (h *ProductHandler) patch(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req ProductPatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.PatchProduct(c.Request().Context(), adminID, id, usecase.ProductPatchInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) remove(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
