package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	apperrors "github.com/tiendaropa/catalog-backend/internal/errors"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
	"github.com/tiendaropa/catalog-backend/internal/websocket"
	"github.com/tiendaropa/catalog-backend/pkg/redis"
)

// ProductCategoryController exposes the product-category link
// endpoints. Every product with links has exactly one primary
// category; the service keeps that invariant, this controller only
// translates requests and errors.
type ProductCategoryController struct {
	linkService service.ProductCategoryService
	hub         *websocket.Hub
}

func NewProductCategoryController(linkService service.ProductCategoryService, hub *websocket.Hub) *ProductCategoryController {
	return &ProductCategoryController{
		linkService: linkService,
		hub:         hub,
	}
}

type AddCategoryRequest struct {
	CategoryID uint `json:"category_id" binding:"required"`
	Primary    bool `json:"primary"`
}

type SetPrimaryRequest struct {
	CategoryID uint `json:"category_id" binding:"required"`
}

type ReplaceCategoriesRequest struct {
	PrimaryID    uint   `json:"primary_id" binding:"required"`
	SecondaryIDs []uint `json:"secondary_ids"`
}

func linkResponse(link *model.ProductCategory) gin.H {
	response := gin.H{
		"id":          link.ID,
		"product_id":  link.ProductID,
		"category_id": link.CategoryID,
		"is_primary":  link.IsPrimary,
		"created_at":  link.CreatedAt,
	}
	if link.Category.ID != 0 {
		response["category"] = link.Category
	}
	return response
}

// GetProductCategories lists a product's category links, primary first
// GET /api/v1/products/:id/categories
func (ctrl *ProductCategoryController) GetProductCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	links, err := ctrl.linkService.GetCategories(productID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product categories", err, map[string]interface{}{
			"product_id": productID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list categories")
		return
	}

	response := make([]gin.H, 0, len(links))
	for i := range links {
		response = append(response, linkResponse(&links[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": response,
		"count":      len(response),
	})
}

// GetPrimaryCategory returns a product's primary category, or null
// when the product has no links
// GET /api/v1/products/:id/categories/primary
func (ctrl *ProductCategoryController) GetPrimaryCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	category, err := ctrl.linkService.GetPrimaryCategory(productID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch primary category", err, map[string]interface{}{
			"product_id": productID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
	})
}

// GetSecondaryCategories lists a product's non-primary categories
// GET /api/v1/products/:id/categories/secondary
func (ctrl *ProductCategoryController) GetSecondaryCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	categories, err := ctrl.linkService.GetSecondaryCategories(productID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch secondary categories", err, map[string]interface{}{
			"product_id": productID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// AddCategory links a product to a category (Admin only)
// POST /api/v1/admin/products/:id/categories
func (ctrl *ProductCategoryController) AddCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AddCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "A category_id is required")
		return
	}

	link, err := ctrl.linkService.AddCategory(productID, req.CategoryID, req.Primary)
	if err != nil {
		ctrl.respondLinkError(c, err, "create link")
		return
	}

	log.Info("Category linked to product", map[string]interface{}{
		"product_id":  productID,
		"category_id": req.CategoryID,
		"is_primary":  link.IsPrimary,
	})

	ctrl.afterLinkChange(c, productID, req.CategoryID)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Category linked successfully",
		"link":    linkResponse(link),
	})
}

// RemoveCategory unlinks a category from a product. When the primary
// link is removed the oldest remaining link is promoted (Admin only)
// DELETE /api/v1/admin/products/:id/categories/:categoryId
func (ctrl *ProductCategoryController) RemoveCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	categoryID, ok := parseIDParam(c, "categoryId")
	if !ok {
		return
	}

	if err := ctrl.linkService.RemoveCategory(productID, categoryID); err != nil {
		ctrl.respondLinkError(c, err, "delete link")
		return
	}

	log.Info("Category unlinked from product", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
	})

	ctrl.afterLinkChange(c, productID, categoryID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Category unlinked successfully",
	})
}

// SetPrimary promotes an existing link to primary (Admin only)
// PUT /api/v1/admin/products/:id/categories/primary
func (ctrl *ProductCategoryController) SetPrimary(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetPrimaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "A category_id is required")
		return
	}

	if err := ctrl.linkService.SetPrimary(productID, req.CategoryID); err != nil {
		ctrl.respondLinkError(c, err, "update link")
		return
	}

	log.Info("Primary category changed", map[string]interface{}{
		"product_id":  productID,
		"category_id": req.CategoryID,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicProducts, websocket.EventPrimaryChanged, gin.H{
			"product_id":  productID,
			"category_id": req.CategoryID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Primary category updated successfully",
	})
}

// ReplaceCategories swaps a product's whole category set in one call
// (Admin only)
// PUT /api/v1/admin/products/:id/categories
func (ctrl *ProductCategoryController) ReplaceCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReplaceCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "A primary_id is required")
		return
	}

	links, err := ctrl.linkService.ReplaceCategories(productID, req.PrimaryID, req.SecondaryIDs)
	if err != nil {
		ctrl.respondLinkError(c, err, "update link")
		return
	}

	log.Info("Product categories replaced", map[string]interface{}{
		"product_id": productID,
		"primary_id": req.PrimaryID,
		"links":      len(links),
	})

	ctrl.afterLinkChange(c, productID, req.PrimaryID)

	response := make([]gin.H, 0, len(links))
	for i := range links {
		response = append(response, linkResponse(&links[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Categories replaced successfully",
		"categories": response,
	})
}

// TopProducts ranks products by how many categories they belong to
// GET /api/v1/stats/products/top?limit=10
func (ctrl *ProductCategoryController) TopProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	limit, ok := parseLimitQuery(c, 10)
	if !ok {
		return
	}

	ranking, err := ctrl.linkService.TopProductsByCategoryCount(limit)
	if err != nil {
		log.Error("Failed to rank products", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": ranking,
		"count":    len(ranking),
	})
}

// TopCategories ranks categories by how many products they contain
// GET /api/v1/stats/categories/top?limit=10
func (ctrl *ProductCategoryController) TopCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	limit, ok := parseLimitQuery(c, 10)
	if !ok {
		return
	}

	ranking, err := ctrl.linkService.TopCategoriesByProductCount(limit)
	if err != nil {
		log.Error("Failed to rank categories", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": ranking,
		"count":      len(ranking),
	})
}

// afterLinkChange invalidates the cached count and notifies
// subscribers after a link mutation.
func (ctrl *ProductCategoryController) afterLinkChange(c *gin.Context, productID, categoryID uint) {
	if redis.GetClient() != nil {
		_ = redis.InvalidateCategoryProductCount(c.Request.Context(), categoryID)
	}

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicProducts, websocket.EventProductUpdated, gin.H{
			"product_id":  productID,
			"category_id": categoryID,
		})
	}
}

func (ctrl *ProductCategoryController) respondLinkError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
	case errors.Is(err, service.ErrCategoryAlreadyLinked):
		apperrors.Conflict(c, apperrors.CategoryAlreadySet, "Product is already linked to this category")
	case errors.Is(err, service.ErrCategoryNotLinked):
		apperrors.NotFound(c, apperrors.CategoryNotLinked, "Product is not linked to this category")
	case errors.Is(err, service.ErrCategoryInactive):
		apperrors.Conflict(c, apperrors.CategoryInactive, "Category is not active")
	case errors.Is(err, service.ErrPrimaryRequired):
		apperrors.BadRequest(c, apperrors.CategoryPrimaryFixed, "A primary category is required")
	default:
		log.Error("Link operation failed", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}

// parseLimitQuery reads a bounded limit query parameter.
func parseLimitQuery(c *gin.Context, fallback int) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return fallback, true
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "Limit must be between 1 and 100")
		return 0, false
	}
	return limit, true
}
