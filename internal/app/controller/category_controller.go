package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	apperrors "github.com/tiendaropa/catalog-backend/internal/errors"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
	"github.com/tiendaropa/catalog-backend/internal/websocket"
	"github.com/tiendaropa/catalog-backend/pkg/redis"
)

type CategoryController struct {
	categoryService service.CategoryService
	linkService     service.ProductCategoryService
	hub             *websocket.Hub
}

func NewCategoryController(
	categoryService service.CategoryService,
	linkService service.ProductCategoryService,
	hub *websocket.Hub,
) *CategoryController {
	return &CategoryController{
		categoryService: categoryService,
		linkService:     linkService,
		hub:             hub,
	}
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"max=500"`
	ImageURL    string `json:"image_url"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	ImageURL    *string `json:"image_url"`
	Active      *bool   `json:"active"`
}

// categoryResponse serializes a category with its cached product count.
func (ctrl *CategoryController) categoryResponse(c *gin.Context, category *model.Category) gin.H {
	return gin.H{
		"id":            category.ID,
		"name":          category.Name,
		"slug":          category.Slug,
		"description":   category.Description,
		"image_url":     category.ImageURL,
		"active":        category.Active,
		"product_count": ctrl.productCount(c, category.ID),
		"created_at":    category.CreatedAt,
		"updated_at":    category.UpdatedAt,
	}
}

// productCount returns the category's product count, preferring the
// cache and falling back to a live count.
func (ctrl *CategoryController) productCount(c *gin.Context, categoryID uint) int64 {
	ctx := c.Request.Context()

	if redis.GetClient() != nil {
		count, found, err := redis.GetCategoryProductCount(ctx, categoryID)
		if err == nil && found {
			return count
		}
	}

	count, err := ctrl.linkService.CountProducts(categoryID)
	if err != nil {
		return 0
	}

	if redis.GetClient() != nil {
		_ = redis.SetCategoryProductCount(ctx, categoryID, count)
	}

	return count
}

func (ctrl *CategoryController) invalidateCount(c *gin.Context, categoryID uint) {
	if redis.GetClient() != nil {
		_ = redis.InvalidateCategoryProductCount(c.Request.Context(), categoryID)
	}
}

// ListCategories returns categories, optionally only active ones
// GET /api/v1/categories?active=true&search=...
func (ctrl *CategoryController) ListCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	activeOnly := c.Query("active") == "true"
	search := c.Query("search")

	categories, err := ctrl.categoryService.ListCategories(activeOnly, search)
	if err != nil {
		log.Error("Failed to fetch categories", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list categories")
		return
	}

	response := make([]gin.H, 0, len(categories))
	for i := range categories {
		response = append(response, ctrl.categoryResponse(c, &categories[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": response,
		"count":      len(response),
	})
}

// GetCategory returns a category by ID
// GET /api/v1/categories/:id
func (ctrl *CategoryController) GetCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	category, err := ctrl.categoryService.GetCategoryByID(id)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		log.Error("Failed to fetch category", err, map[string]interface{}{
			"category_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": ctrl.categoryResponse(c, category),
	})
}

// GetCategoryBySlug returns a category by its slug
// GET /api/v1/categories/slug/:slug
func (ctrl *CategoryController) GetCategoryBySlug(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	category, err := ctrl.categoryService.GetCategoryBySlug(c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		log.Error("Failed to fetch category", err, map[string]interface{}{
			"slug": c.Param("slug"),
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": ctrl.categoryResponse(c, category),
	})
}

// GetCategoryProducts returns the products linked to a category
// GET /api/v1/categories/:id/products
func (ctrl *CategoryController) GetCategoryProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := ctrl.categoryService.GetCategoryByID(id); err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get category")
		return
	}

	products, err := ctrl.linkService.GetProducts(id)
	if err != nil {
		log.Error("Failed to fetch category products", err, map[string]interface{}{
			"category_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// CreateCategory creates a new category (Admin only)
// POST /api/v1/admin/categories
func (ctrl *CategoryController) CreateCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid category creation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	category, err := ctrl.categoryService.CreateCategory(service.CreateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCategoryNameExists):
			apperrors.Conflict(c, apperrors.CategoryNameExists, "A category with this name already exists")
		case errors.Is(err, service.ErrInvalidCategoryName):
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		case errors.Is(err, service.ErrCategoryDescTooLong):
			apperrors.BadRequest(c, apperrors.ValidationTooLong, err.Error())
		default:
			log.Error("Failed to create category", err, map[string]interface{}{
				"name": req.Name,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "create category")
		}
		return
	}

	log.Info("Category created successfully", map[string]interface{}{
		"category_id": category.ID,
		"name":        category.Name,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicCategories, websocket.EventCategoryCreated, category)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Category created successfully",
		"category": ctrl.categoryResponse(c, category),
	})
}

// UpdateCategory patches a category (Admin only)
// PUT /api/v1/admin/categories/:id
func (ctrl *CategoryController) UpdateCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid category update request", map[string]interface{}{
			"category_id": id,
			"error":       err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	category, err := ctrl.categoryService.UpdateCategory(id, service.UpdateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Active:      req.Active,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCategoryNotFound):
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
		case errors.Is(err, service.ErrCategoryNameExists):
			apperrors.Conflict(c, apperrors.CategoryNameExists, "A category with this name already exists")
		case errors.Is(err, service.ErrInvalidCategoryName):
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		case errors.Is(err, service.ErrCategoryDescTooLong):
			apperrors.BadRequest(c, apperrors.ValidationTooLong, err.Error())
		default:
			log.Error("Failed to update category", err, map[string]interface{}{
				"category_id": id,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "update category")
		}
		return
	}

	log.Info("Category updated successfully", map[string]interface{}{
		"category_id": category.ID,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicCategories, websocket.EventCategoryUpdated, category)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Category updated successfully",
		"category": ctrl.categoryResponse(c, category),
	})
}

// DeleteCategory removes a category and its product links (Admin only)
// DELETE /api/v1/admin/categories/:id
func (ctrl *CategoryController) DeleteCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.categoryService.DeleteCategory(id); err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		if errors.Is(err, service.ErrCategoryInUse) {
			apperrors.Conflict(c, apperrors.CategoryHasProducts, "Category still has linked products")
			return
		}
		log.Error("Failed to delete category", err, map[string]interface{}{
			"category_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "delete category")
		return
	}

	ctrl.invalidateCount(c, id)

	log.Info("Category deleted successfully", map[string]interface{}{
		"category_id": id,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicCategories, websocket.EventCategoryDeleted, gin.H{"id": id})
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Category deleted successfully",
	})
}
