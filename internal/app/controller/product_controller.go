package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	apperrors "github.com/tiendaropa/catalog-backend/internal/errors"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
	"github.com/tiendaropa/catalog-backend/internal/websocket"
	"github.com/tiendaropa/catalog-backend/pkg/redis"
)

type ProductController struct {
	productService service.ProductService
	linkService    service.ProductCategoryService
	hub            *websocket.Hub

	// Drops a category's cached product count after a link-affecting
	// mutation. Swappable in tests.
	invalidateCount func(c *gin.Context, categoryID uint)
}

func NewProductController(
	productService service.ProductService,
	linkService service.ProductCategoryService,
	hub *websocket.Hub,
) *ProductController {
	return &ProductController{
		productService: productService,
		linkService:    linkService,
		hub:            hub,
		invalidateCount: func(c *gin.Context, categoryID uint) {
			if redis.GetClient() != nil {
				_ = redis.InvalidateCategoryProductCount(c.Request.Context(), categoryID)
			}
		},
	}
}

func (ctrl *ProductController) invalidateCounts(c *gin.Context, categoryIDs ...uint) {
	for _, id := range categoryIDs {
		ctrl.invalidateCount(c, id)
	}
}

type CreateProductRequest struct {
	Name                 string          `json:"name" binding:"required,min=2,max=200"`
	Description          string          `json:"description" binding:"max=1000"`
	Price                decimal.Decimal `json:"price" binding:"required"`
	Stock                int             `json:"stock" binding:"gte=0"`
	ImageURL             string          `json:"image_url"`
	CategoryID           uint            `json:"category_id" binding:"required"`
	SecondaryCategoryIDs []uint          `json:"secondary_category_ids"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=2,max=200"`
	Description *string          `json:"description" binding:"omitempty,max=1000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
	ImageURL    *string          `json:"image_url"`
	Active      *bool            `json:"active"`
	CategoryID  *uint            `json:"category_id"`
}

type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// listOptionsFromQuery builds product list options from query params.
func listOptionsFromQuery(c *gin.Context) (service.ProductListOptions, error) {
	opts := service.ProductListOptions{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("active") == "true",
	}

	if categoryStr := c.Query("category_id"); categoryStr != "" {
		categoryID, err := strconv.ParseUint(categoryStr, 10, 32)
		if err != nil {
			return opts, errors.New("invalid category_id")
		}
		id := uint(categoryID)
		opts.CategoryID = &id
	}

	if minStr := c.Query("min_price"); minStr != "" {
		minPrice, err := decimal.NewFromString(minStr)
		if err != nil {
			return opts, errors.New("invalid min_price")
		}
		opts.MinPrice = &minPrice
	}

	if maxStr := c.Query("max_price"); maxStr != "" {
		maxPrice, err := decimal.NewFromString(maxStr)
		if err != nil {
			return opts, errors.New("invalid max_price")
		}
		opts.MaxPrice = &maxPrice
	}

	switch c.Query("sort") {
	case "price":
		opts.Sort = service.ProductSortPrice
	case "name":
		opts.Sort = service.ProductSortName
	default:
		opts.Sort = service.ProductSortCreatedAt
	}
	opts.SortAscending = c.Query("order") == "asc"

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return opts, errors.New("invalid limit")
		}
		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return opts, errors.New("invalid offset")
		}
		opts.Offset = offset
	}

	return opts, nil
}

// ListProducts returns products with filtering, sorting and pagination
// GET /api/v1/products
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	opts, err := listOptionsFromQuery(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		return
	}

	products, err := ctrl.productService.ListProducts(opts)
	if err != nil {
		log.Error("Failed to fetch products", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns a product by ID
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.GetProductByID(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// GetProductBySlug returns a product by its slug
// GET /api/v1/products/slug/:slug
func (ctrl *ProductController) GetProductBySlug(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	product, err := ctrl.productService.GetProductBySlug(c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product", err, map[string]interface{}{
			"slug": c.Param("slug"),
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// CreateProduct creates a product with its category links (Admin only)
// POST /api/v1/admin/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid product creation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	product, err := ctrl.productService.CreateProduct(service.CreateProductInput{
		Name:                 req.Name,
		Description:          req.Description,
		Price:                req.Price,
		Stock:                req.Stock,
		ImageURL:             req.ImageURL,
		CategoryID:           req.CategoryID,
		SecondaryCategoryIDs: req.SecondaryCategoryIDs,
	})
	if err != nil {
		ctrl.respondProductError(c, err, "create product")
		return
	}

	log.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})

	ctrl.invalidateCounts(c, append([]uint{req.CategoryID}, req.SecondaryCategoryIDs...)...)

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicProducts, websocket.EventProductCreated, product)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

// UpdateProduct patches a product (Admin only)
// PUT /api/v1/admin/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid product update request", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	// The old primary's count changes too when the product moves category
	var previousPrimary *model.Category
	if req.CategoryID != nil {
		previousPrimary, _ = ctrl.linkService.GetPrimaryCategory(id)
	}

	product, err := ctrl.productService.UpdateProduct(id, service.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Active:      req.Active,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		ctrl.respondProductError(c, err, "update product")
		return
	}

	if req.CategoryID != nil {
		ctrl.invalidateCounts(c, *req.CategoryID)
		if previousPrimary != nil && previousPrimary.ID != *req.CategoryID {
			ctrl.invalidateCounts(c, previousPrimary.ID)
		}
	}

	log.Info("Product updated successfully", map[string]interface{}{
		"product_id": product.ID,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicProducts, websocket.EventProductUpdated, product)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

// DeleteProduct removes a product and its category links (Admin only)
// DELETE /api/v1/admin/products/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Snapshot the links now; they are gone once the delete lands
	links, _ := ctrl.linkService.GetCategories(id)

	if err := ctrl.productService.DeleteProduct(id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to delete product", err, map[string]interface{}{
			"product_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "delete product")
		return
	}

	for _, link := range links {
		ctrl.invalidateCounts(c, link.CategoryID)
	}

	log.Info("Product deleted successfully", map[string]interface{}{
		"product_id": id,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicProducts, websocket.EventProductDeleted, gin.H{"id": id})
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
	})
}

// AdjustStock applies a stock delta to a product (Admin only)
// PATCH /api/v1/admin/products/:id/stock
func (ctrl *ProductController) AdjustStock(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "A non-zero stock delta is required")
		return
	}

	product, err := ctrl.productService.AdjustStock(id, req.Delta)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
		case errors.Is(err, service.ErrInsufficientStock):
			apperrors.Conflict(c, apperrors.ProductOutOfStock, "Not enough stock for this adjustment")
		default:
			log.Error("Failed to adjust stock", err, map[string]interface{}{
				"product_id": id,
				"delta":      req.Delta,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "update stock")
		}
		return
	}

	log.Info("Stock adjusted successfully", map[string]interface{}{
		"product_id": product.ID,
		"delta":      req.Delta,
		"stock":      product.Stock,
	})

	if ctrl.hub != nil {
		ctrl.hub.Publish(websocket.TopicStock, websocket.EventStockChanged, gin.H{
			"product_id": product.ID,
			"stock":      product.Stock,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock adjusted successfully",
		"product": product,
	})
}

// GetLowStockProducts lists products at or below a stock threshold (Admin only)
// GET /api/v1/admin/products/low-stock?threshold=5
func (ctrl *ProductController) GetLowStockProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	threshold := 5
	if thresholdStr := c.Query("threshold"); thresholdStr != "" {
		parsed, err := strconv.Atoi(thresholdStr)
		if err != nil || parsed < 0 {
			apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "Invalid threshold")
			return
		}
		threshold = parsed
	}

	products, err := ctrl.productService.GetLowStockProducts(threshold)
	if err != nil {
		log.Error("Failed to fetch low stock products", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products":  products,
		"count":     len(products),
		"threshold": threshold,
	})
}

// GetCatalogTotals returns aggregate product counts and stock
// GET /api/v1/stats/products/totals
func (ctrl *ProductController) GetCatalogTotals(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	totals, err := ctrl.productService.GetCatalogTotals()
	if err != nil {
		log.Error("Failed to compute catalog totals", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "catalog totals")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totals": totals,
	})
}

// respondProductError maps product service errors to HTTP responses.
func (ctrl *ProductController) respondProductError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
	case errors.Is(err, service.ErrCategoryInactive):
		apperrors.Conflict(c, apperrors.CategoryInactive, "Category is not active")
	case errors.Is(err, service.ErrInvalidProductName):
		apperrors.BadRequest(c, apperrors.ProductNameTooShort, err.Error())
	case errors.Is(err, service.ErrInvalidProductPrice):
		apperrors.BadRequest(c, apperrors.ProductInvalidPrice, err.Error())
	case errors.Is(err, service.ErrInvalidProductStock):
		apperrors.BadRequest(c, apperrors.ProductInvalidStock, err.Error())
	case errors.Is(err, service.ErrDescriptionTooLong):
		apperrors.BadRequest(c, apperrors.ValidationTooLong, err.Error())
	default:
		log.Error("Product operation failed", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}
