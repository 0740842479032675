package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"gorm.io/gorm"
)

func setupProductControllerTest(t *testing.T) (*ProductController, *gin.Engine, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	linkRepo := repository.NewProductCategoryRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	categoryRepo := repository.NewCategoryRepository(testDB)
	linkService := service.NewProductCategoryService(linkRepo, productRepo, categoryRepo, testDB)
	productService := service.NewProductService(productRepo, categoryRepo, linkService, testDB)
	controller := NewProductController(productService, linkService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint(1))
		c.Set("user_role", model.RoleAdmin)
		c.Next()
	})

	router.GET("/products", controller.ListProducts)
	router.GET("/products/:id", controller.GetProduct)
	router.GET("/products/slug/:slug", controller.GetProductBySlug)
	router.POST("/products", controller.CreateProduct)
	router.PUT("/products/:id", controller.UpdateProduct)
	router.DELETE("/products/:id", controller.DeleteProduct)
	router.PATCH("/products/:id/stock", controller.AdjustStock)
	router.GET("/products/low-stock", controller.GetLowStockProducts)

	return controller, router, testDB
}

func seedControllerCategory(t *testing.T, testDB *gorm.DB, name string) *model.Category {
	t.Helper()
	category := &model.Category{
		Name:   name,
		Slug:   name,
		Active: true,
	}
	require.NoError(t, testDB.Create(category).Error)
	return category
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestProductController_CreateProduct_Success(t *testing.T) {
	_, router, testDB := setupProductControllerTest(t)
	category := seedControllerCategory(t, testDB, "camisetas")

	w := postJSON(t, router, "/products", CreateProductRequest{
		Name:       "Camiseta Básica Blanca",
		Price:      decimal.RequireFromString("19.99"),
		Stock:      25,
		CategoryID: category.ID,
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.Equal(t, "Product created successfully", response["message"])

	product := response["product"].(map[string]interface{})
	assert.Equal(t, "Camiseta Básica Blanca", product["name"])
	assert.Equal(t, "camiseta-basica-blanca", product["slug"])

	// The category link rides in the creation transaction
	var link model.ProductCategory
	require.NoError(t, testDB.Where("category_id = ?", category.ID).First(&link).Error)
	assert.True(t, link.IsPrimary)
}

func TestProductController_CountCacheInvalidation(t *testing.T) {
	ctrl, router, testDB := setupProductControllerTest(t)
	camisetas := seedControllerCategory(t, testDB, "camisetas")
	ofertas := seedControllerCategory(t, testDB, "ofertas")
	abrigos := seedControllerCategory(t, testDB, "abrigos")

	var invalidated []uint
	ctrl.invalidateCount = func(c *gin.Context, categoryID uint) {
		invalidated = append(invalidated, categoryID)
	}

	w := postJSON(t, router, "/products", CreateProductRequest{
		Name:                 "Camiseta básica",
		Price:                decimal.RequireFromString("19.99"),
		Stock:                10,
		CategoryID:           camisetas.ID,
		SecondaryCategoryIDs: []uint{ofertas.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.ElementsMatch(t, []uint{camisetas.ID, ofertas.ID}, invalidated,
		"creating a product changes every linked category's count")

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	productID := uint(response["product"].(map[string]interface{})["id"].(float64))

	// Moving the primary category touches both the old and new one
	invalidated = nil
	newCategory := abrigos.ID
	body, err := json.Marshal(UpdateProductRequest{CategoryID: &newCategory})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/products/%d", productID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []uint{camisetas.ID, abrigos.ID}, invalidated)

	// Deleting drops the counts of everything the product linked to;
	// the old primary survived the retarget as a secondary link
	invalidated = nil
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/products/%d", productID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []uint{camisetas.ID, ofertas.ID, abrigos.ID}, invalidated)
}

func TestProductController_CreateProduct_UnknownCategory(t *testing.T) {
	_, router, _ := setupProductControllerTest(t)

	w := postJSON(t, router, "/products", CreateProductRequest{
		Name:       "Camiseta",
		Price:      decimal.RequireFromString("19.99"),
		Stock:      5,
		CategoryID: 9999,
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CATEGORY_NOT_FOUND")
}

func TestProductController_CreateProduct_InvalidRequest(t *testing.T) {
	_, router, testDB := setupProductControllerTest(t)
	category := seedControllerCategory(t, testDB, "camisetas")

	tests := []struct {
		name    string
		reqBody map[string]interface{}
	}{
		{
			name:    "Missing name",
			reqBody: map[string]interface{}{"price": "19.99", "category_id": category.ID},
		},
		{
			name:    "Missing category",
			reqBody: map[string]interface{}{"name": "Camiseta", "price": "19.99"},
		},
		{
			name:    "Negative stock",
			reqBody: map[string]interface{}{"name": "Camiseta", "price": "19.99", "stock": -1, "category_id": category.ID},
		},
		{
			name:    "Name too short",
			reqBody: map[string]interface{}{"name": "C", "price": "19.99", "category_id": category.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/products", tt.reqBody)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestProductController_ListProducts_CategoryFilter(t *testing.T) {
	_, router, testDB := setupProductControllerTest(t)
	camisetas := seedControllerCategory(t, testDB, "camisetas")
	pantalones := seedControllerCategory(t, testDB, "pantalones")

	require.Equal(t, http.StatusCreated, postJSON(t, router, "/products", CreateProductRequest{
		Name:       "Camiseta Azul",
		Price:      decimal.RequireFromString("15.00"),
		Stock:      5,
		CategoryID: camisetas.ID,
	}).Code)
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/products", CreateProductRequest{
		Name:       "Pantalón Vaquero",
		Price:      decimal.RequireFromString("39.99"),
		Stock:      3,
		CategoryID: pantalones.ID,
	}).Code)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/products?category_id=%d", camisetas.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	products := response["products"].([]interface{})
	require.Len(t, products, 1)
	assert.Equal(t, "Camiseta Azul", products[0].(map[string]interface{})["name"])
}

func TestProductController_GetProduct_NotFound(t *testing.T) {
	_, router, _ := setupProductControllerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/products/9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "PRODUCT_NOT_FOUND")
}

func TestProductController_GetProduct_InvalidID(t *testing.T) {
	_, router, _ := setupProductControllerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/products/invalid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_INVALID_ID")
}

func TestProductController_AdjustStock(t *testing.T) {
	_, router, testDB := setupProductControllerTest(t)
	category := seedControllerCategory(t, testDB, "camisetas")

	created := postJSON(t, router, "/products", CreateProductRequest{
		Name:       "Camiseta Negra",
		Price:      decimal.RequireFromString("12.50"),
		Stock:      10,
		CategoryID: category.ID,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var createResponse map[string]interface{}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createResponse))
	productID := uint(createResponse["product"].(map[string]interface{})["id"].(float64))

	jsonBody, _ := json.Marshal(AdjustStockRequest{Delta: -4})
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/products/%d/stock", productID), bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	product := response["product"].(map[string]interface{})
	assert.Equal(t, float64(6), product["stock"])

	// Draining below zero is refused
	jsonBody, _ = json.Marshal(AdjustStockRequest{Delta: -100})
	req = httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/products/%d/stock", productID), bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PRODUCT_OUT_OF_STOCK")
}

func TestProductController_DeleteProduct_RemovesLinks(t *testing.T) {
	_, router, testDB := setupProductControllerTest(t)
	category := seedControllerCategory(t, testDB, "camisetas")

	created := postJSON(t, router, "/products", CreateProductRequest{
		Name:       "Camiseta Roja",
		Price:      decimal.RequireFromString("14.00"),
		Stock:      2,
		CategoryID: category.ID,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var createResponse map[string]interface{}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createResponse))
	productID := uint(createResponse["product"].(map[string]interface{})["id"].(float64))

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/products/%d", productID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var linkCount int64
	testDB.Model(&model.ProductCategory{}).Where("product_id = ?", productID).Count(&linkCount)
	assert.Equal(t, int64(0), linkCount)
}
