package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
)

type productPayload struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity *int            `json:"stock_quantity"`
	IsActive      *bool           `json:"is_active"`
	ImageURL      string          `json:"image_url"`
}

// input converts the payload. Omitted is_active means active, omitted stock means zero.
func (p productPayload) input() catalog.ProductInput {
	in := catalog.ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		IsActive:    true,
		ImageURL:    p.ImageURL,
	}
	if p.StockQuantity != nil {
		in.StockQuantity = *p.StockQuantity
	}
	if p.IsActive != nil {
		in.IsActive = *p.IsActive
	}
	return in
}

type stockPayload struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// registerProductRoutes registers catalog read and admin mutation endpoints
func registerProductRoutes() {
	webserver.ApiGET("/products", listActiveProducts)
	webserver.ApiGET("/products/all", listAllProducts, requireAdmin)
	webserver.ApiGET("/products/search", searchProducts)
	webserver.ApiGET("/products/categories", listCategories)
	webserver.ApiGET("/products/category/:category", listCategoryProducts)
	webserver.ApiGET("/products/export", exportProducts, requireAdmin)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct, requireAdmin)
	webserver.ApiPUT("/products/:id", updateProduct, requireAdmin)
	webserver.ApiDELETE("/products/:id", deleteProduct, requireAdmin)
	webserver.ApiPATCH("/products/:id/stock", adjustStock, requireAdmin)
}

func listProducts(c echo.Context, f catalog.Filter) error {
	rows, err := GetAppContext(c).Catalog().List(requestContext(c), f)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, rows)
}

// @Summary list active products
// @Tags Products
// @Success 200 {array} domain.Product
// @Router /api/products [get]
func listActiveProducts(c echo.Context) error {
	return listProducts(c, catalog.ActiveOnly())
}

// @Summary list all products including inactive
// @Tags Products
// @Success 200 {array} domain.Product
// @Router /api/products/all [get]
func listAllProducts(c echo.Context) error {
	return listProducts(c, catalog.All())
}

// @Summary search active products by name or description
// @Tags Products
// @Param q query string false "Search term"
// @Success 200 {array} domain.Product
// @Router /api/products/search [get]
func searchProducts(c echo.Context) error {
	return listProducts(c, catalog.Search(c.QueryParam("q")))
}

// @Summary list active products of a category
// @Tags Products
// @Param category path string true "Category"
// @Success 200 {array} domain.Product
// @Router /api/products/category/{category} [get]
func listCategoryProducts(c echo.Context) error {
	category, err := url.PathUnescape(c.Param("category"))
	if err != nil {
		category = c.Param("category")
	}
	return listProducts(c, catalog.ByCategory(category))
}

// @Summary list categories
// @Tags Products
// @Success 200 {array} string
// @Router /api/products/categories [get]
func listCategories(c echo.Context) error {
	return ok(c, GetAppContext(c).Catalog().Categories())
}

// @Summary get a product
// @Tags Products
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} errorBody
// @Router /api/products/{id} [get]
func getProduct(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	p, err := GetAppContext(c).Catalog().Get(requestContext(c), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, p)
}

// @Summary create a product
// @Tags Products
// @Param body body productPayload true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} errorBody
// @Router /api/products [post]
func createProduct(c echo.Context) error {
	var payload productPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	p, err := GetAppContext(c).Catalog().Create(requestContext(c), payload.input())
	if err != nil {
		return failErr(c, err)
	}
	audit(c, "product_create", fmt.Sprintf("created product %d %q", p.ID, p.Name))
	return created(c, fmt.Sprintf("/api/products/%d", p.ID), p)
}

// @Summary update a product
// @Tags Products
// @Param id path string true "Product ID"
// @Param body body productPayload true "Product"
// @Success 200 {object} domain.Product
// @Router /api/products/{id} [put]
func updateProduct(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload productPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	p, err := GetAppContext(c).Catalog().Update(requestContext(c), id, payload.input())
	if err != nil {
		return failErr(c, err)
	}
	audit(c, "product_update", fmt.Sprintf("updated product %d %q", p.ID, p.Name))
	return ok(c, p)
}

// @Summary delete a product
// @Tags Products
// @Param id path string true "Product ID"
// @Success 204
// @Router /api/products/{id} [delete]
func deleteProduct(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	if err := GetAppContext(c).Catalog().Delete(requestContext(c), id); err != nil {
		return failErr(c, err)
	}
	audit(c, "product_delete", fmt.Sprintf("deleted product %d", id))
	return c.NoContent(http.StatusNoContent)
}

// adjustStock applies {"quantity": delta} to the stock counter.
//
// @Summary adjust stock by a signed delta
// @Tags Products
// @Param id path string true "Product ID"
// @Param body body stockPayload true "Delta"
// @Success 200 {object} domain.Product
// @Failure 400 {object} errorBody
// @Router /api/products/{id}/stock [patch]
func adjustStock(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload stockPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	delta := *payload.Quantity
	p, err := GetAppContext(c).Catalog().AdjustStock(requestContext(c), id, delta)
	if err != nil {
		return failErr(c, err)
	}
	audit(c, "product_stock", fmt.Sprintf("adjusted stock of product %d by %+d to %d", id, delta, p.StockQuantity))
	return ok(c, p)
}

// @Summary export the catalog
// @Tags Products
// @Param format query string false "csv or xlsx"
// @Success 200 {file} file
// @Router /api/products/export [get]
func exportProducts(c echo.Context) error {
	format := strings.ToLower(strings.TrimSpace(c.QueryParam("format")))
	if format == "" {
		format = catalog.ExportCSV
	}
	if format != catalog.ExportCSV && format != catalog.ExportXLSX {
		verr := &domain.ValidationError{}
		verr.Add("format", "format must be csv or xlsx")
		return failErr(c, verr)
	}
	var buf bytes.Buffer
	if err := GetAppContext(c).Catalog().Export(requestContext(c), format, &buf); err != nil {
		return failErr(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="products.%s"`, format))
	return c.Blob(http.StatusOK, catalog.ContentType(format), buf.Bytes())
}
