package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"gorm.io/gorm"
)

func setupCategoryControllerTest(t *testing.T) (*CategoryController, *gin.Engine, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	linkRepo := repository.NewProductCategoryRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	categoryRepo := repository.NewCategoryRepository(testDB)
	linkService := service.NewProductCategoryService(linkRepo, productRepo, categoryRepo, testDB)
	categoryService := service.NewCategoryService(categoryRepo, linkService, testDB)
	controller := NewCategoryController(categoryService, linkService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint(1))
		c.Set("user_role", model.RoleAdmin)
		c.Next()
	})

	router.GET("/categories", controller.ListCategories)
	router.GET("/categories/:id", controller.GetCategory)
	router.GET("/categories/slug/:slug", controller.GetCategoryBySlug)
	router.GET("/categories/:id/products", controller.GetCategoryProducts)
	router.POST("/categories", controller.CreateCategory)
	router.PUT("/categories/:id", controller.UpdateCategory)
	router.DELETE("/categories/:id", controller.DeleteCategory)

	return controller, router, testDB
}

func TestCategoryController_CreateCategory_Success(t *testing.T) {
	_, router, _ := setupCategoryControllerTest(t)

	jsonBody, _ := json.Marshal(CreateCategoryRequest{
		Name:        "Ropa de Invierno",
		Description: "Abrigos, jerséis y más",
	})
	req := httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	category := response["category"].(map[string]interface{})
	assert.Equal(t, "Ropa de Invierno", category["name"])
	assert.Equal(t, "ropa-de-invierno", category["slug"])
	assert.Equal(t, true, category["active"])
	assert.Equal(t, float64(0), category["product_count"])
}

func TestCategoryController_CreateCategory_DuplicateName(t *testing.T) {
	_, router, testDB := setupCategoryControllerTest(t)
	seedControllerCategory(t, testDB, "Camisetas")

	jsonBody, _ := json.Marshal(CreateCategoryRequest{Name: "Camisetas"})
	req := httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CATEGORY_NAME_EXISTS")
}

func TestCategoryController_ListCategories_ActiveFilter(t *testing.T) {
	_, router, testDB := setupCategoryControllerTest(t)
	seedControllerCategory(t, testDB, "camisetas")

	inactive := &model.Category{Name: "archivado", Slug: "archivado", Active: false}
	require.NoError(t, testDB.Create(inactive).Error)

	req := httptest.NewRequest(http.MethodGet, "/categories?active=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["count"])
}

func TestCategoryController_GetCategoryBySlug(t *testing.T) {
	_, router, testDB := setupCategoryControllerTest(t)
	seedControllerCategory(t, testDB, "camisetas")

	req := httptest.NewRequest(http.MethodGet, "/categories/slug/camisetas", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	category := response["category"].(map[string]interface{})
	assert.Equal(t, "camisetas", category["name"])
}

func TestCategoryController_GetCategory_NotFound(t *testing.T) {
	_, router, _ := setupCategoryControllerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/categories/9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CATEGORY_NOT_FOUND")
}

func TestCategoryController_UpdateCategory_Deactivate(t *testing.T) {
	_, router, testDB := setupCategoryControllerTest(t)
	category := seedControllerCategory(t, testDB, "camisetas")

	active := false
	jsonBody, _ := json.Marshal(UpdateCategoryRequest{Active: &active})
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/categories/%d", category.ID), bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stored model.Category
	require.NoError(t, testDB.First(&stored, category.ID).Error)
	assert.False(t, stored.Active)
}

func TestCategoryController_DeleteCategory(t *testing.T) {
	_, router, testDB := setupCategoryControllerTest(t)
	camisetas := seedControllerCategory(t, testDB, "camisetas")
	ofertas := seedControllerCategory(t, testDB, "ofertas")

	product := &model.Product{Name: "Camiseta", Slug: "camiseta", Stock: 1, Active: true}
	require.NoError(t, testDB.Create(product).Error)
	require.NoError(t, testDB.Create(&model.ProductCategory{
		ProductID:  product.ID,
		CategoryID: camisetas.ID,
		IsPrimary:  true,
	}).Error)

	t.Run("Linked category cannot be deleted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/categories/%d", camisetas.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "CATEGORY_HAS_PRODUCTS")
	})

	t.Run("Unlinked category deletes cleanly", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/categories/%d", ofertas.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var count int64
		require.NoError(t, testDB.Model(&model.Category{}).
			Where("id = ?", ofertas.ID).
			Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Unknown category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/categories/9999", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCategoryController_GetCategoryProducts(t *testing.T) {
	_, router, testDB := setupCategoryControllerTest(t)
	category := seedControllerCategory(t, testDB, "camisetas")

	product := &model.Product{Name: "Camiseta", Slug: "camiseta", Stock: 1, Active: true}
	require.NoError(t, testDB.Create(product).Error)
	require.NoError(t, testDB.Create(&model.ProductCategory{
		ProductID:  product.ID,
		CategoryID: category.ID,
		IsPrimary:  true,
	}).Error)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/categories/%d/products", category.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["count"])
}
