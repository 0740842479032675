package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"github.com/tiendaropa/catalog-backend/pkg/redis"
)

// CatalogScheduler runs nightly catalog maintenance: it refreshes the
// cached per-category product counts and reports products running low
// on stock.
type CatalogScheduler struct {
	cron              *cron.Cron
	categoryService   service.CategoryService
	productService    service.ProductService
	linkService       service.ProductCategoryService
	lowStockThreshold int
}

func NewCatalogScheduler(
	categoryService service.CategoryService,
	productService service.ProductService,
	linkService service.ProductCategoryService,
	lowStockThreshold int,
) *CatalogScheduler {
	return &CatalogScheduler{
		cron:              cron.New(),
		categoryService:   categoryService,
		productService:    productService,
		linkService:       linkService,
		lowStockThreshold: lowStockThreshold,
	}
}

// Start registers the cron jobs and starts the scheduler.
func (s *CatalogScheduler) Start() error {
	// Refresh category product counts at 03:00 every day
	_, err := s.cron.AddFunc("0 3 * * *", func() {
		logger.Info("Starting scheduled category count refresh", nil)

		if err := s.RefreshCategoryCounts(context.Background()); err != nil {
			logger.Error("Failed to refresh category counts from scheduler", err)
			return
		}

		logger.Info("Successfully refreshed category counts from scheduler", nil)
	})
	if err != nil {
		logger.Error("Failed to add cron job for category count refresh", err)
		return err
	}

	// Report low stock at 07:00 every day
	_, err = s.cron.AddFunc("0 7 * * *", func() {
		if err := s.ReportLowStock(); err != nil {
			logger.Error("Failed to run low stock report from scheduler", err)
		}
	})
	if err != nil {
		logger.Error("Failed to add cron job for low stock report", err)
		return err
	}

	s.cron.Start()
	logger.Info("Catalog scheduler started successfully (counts at 03:00, stock report at 07:00)", nil)

	return nil
}

// Stop halts the scheduler.
func (s *CatalogScheduler) Stop() {
	logger.Info("Stopping catalog scheduler...", nil)
	s.cron.Stop()
	logger.Info("Catalog scheduler stopped", nil)
}

// RefreshCategoryCounts recomputes the product count of every category
// and stores it in the cache.
func (s *CatalogScheduler) RefreshCategoryCounts(ctx context.Context) error {
	if redis.GetClient() == nil {
		logger.Debug("Redis not configured, skipping category count refresh", nil)
		return nil
	}

	categories, err := s.categoryService.ListCategories(false, "")
	if err != nil {
		return err
	}

	for _, category := range categories {
		count, err := s.linkService.CountProducts(category.ID)
		if err != nil {
			logger.Error("Failed to count products for category", err, map[string]interface{}{
				"category_id": category.ID,
			})
			continue
		}

		if err := redis.SetCategoryProductCount(ctx, category.ID, count); err != nil {
			logger.Error("Failed to cache category product count", err, map[string]interface{}{
				"category_id": category.ID,
			})
		}
	}

	logger.Info("Category product counts refreshed", map[string]interface{}{
		"categories": len(categories),
	})

	return nil
}

// ReportLowStock logs a warning for every product at or below the
// configured stock threshold.
func (s *CatalogScheduler) ReportLowStock() error {
	products, err := s.productService.GetLowStockProducts(s.lowStockThreshold)
	if err != nil {
		return err
	}

	if len(products) == 0 {
		logger.Info("No products below stock threshold", map[string]interface{}{
			"threshold": s.lowStockThreshold,
		})
		return nil
	}

	for _, product := range products {
		logger.Warn("Product running low on stock", map[string]interface{}{
			"product_id": product.ID,
			"name":       product.Name,
			"stock":      product.Stock,
		})
	}

	logger.Info("Low stock report finished", map[string]interface{}{
		"threshold": s.lowStockThreshold,
		"products":  len(products),
	})

	return nil
}
