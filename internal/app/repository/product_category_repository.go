package repository

import (
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"gorm.io/gorm"
)

// ProductCategoryCount reports how many categories a product is linked to
type ProductCategoryCount struct {
	ProductID     uint   `json:"product_id"`
	ProductName   string `json:"product_name"`
	CategoryCount int64  `json:"category_count"`
}

// CategoryUsage reports how many products a category is linked to
type CategoryUsage struct {
	CategoryID   uint   `json:"category_id"`
	CategoryName string `json:"category_name"`
	ProductCount int64  `json:"product_count"`
}

type ProductCategoryRepository interface {
	Create(link *model.ProductCategory) error
	FindByProductAndCategory(productID, categoryID uint) (*model.ProductCategory, error)
	FindByProduct(productID uint) ([]model.ProductCategory, error)
	FindPrimaryByProduct(productID uint) (*model.ProductCategory, error)
	FindSecondaryByProduct(productID uint) ([]model.ProductCategory, error)
	FindByCategory(categoryID uint) ([]model.ProductCategory, error)
	CountByProduct(productID uint) (int64, error)
	CountByCategory(categoryID uint) (int64, error)
	Delete(id uint) error
	DeleteByProduct(productID uint) error
	DeleteByCategory(categoryID uint) error
	TopProductsByCategoryCount(limit int) ([]ProductCategoryCount, error)
	TopCategoriesByProductCount(limit int) ([]CategoryUsage, error)
}

type productCategoryRepository struct {
	db *gorm.DB
}

func NewProductCategoryRepository(db *gorm.DB) ProductCategoryRepository {
	return &productCategoryRepository{db: db}
}

func (r *productCategoryRepository) Create(link *model.ProductCategory) error {
	logger.Debug("Creating product-category link in database", map[string]interface{}{
		"product_id":  link.ProductID,
		"category_id": link.CategoryID,
		"is_primary":  link.IsPrimary,
	})

	if err := r.db.Create(link).Error; err != nil {
		logger.Error("Failed to create product-category link in database", err, map[string]interface{}{
			"product_id":  link.ProductID,
			"category_id": link.CategoryID,
		})
		return err
	}
	return nil
}

func (r *productCategoryRepository) FindByProductAndCategory(productID, categoryID uint) (*model.ProductCategory, error) {
	var link model.ProductCategory
	err := r.db.Where("product_id = ? AND category_id = ?", productID, categoryID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// FindByProduct returns all links for a product, the primary one first,
// older secondary links before newer ones.
func (r *productCategoryRepository) FindByProduct(productID uint) ([]model.ProductCategory, error) {
	var links []model.ProductCategory
	err := r.db.Preload("Category").
		Where("product_id = ?", productID).
		Order("is_primary DESC, created_at ASC, id ASC").
		Find(&links).Error
	if err != nil {
		logger.Error("Failed to find links by product in database", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return links, nil
}

func (r *productCategoryRepository) FindPrimaryByProduct(productID uint) (*model.ProductCategory, error) {
	var link model.ProductCategory
	err := r.db.Preload("Category").
		Where("product_id = ? AND is_primary = ?", productID, true).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *productCategoryRepository) FindSecondaryByProduct(productID uint) ([]model.ProductCategory, error) {
	var links []model.ProductCategory
	err := r.db.Preload("Category").
		Where("product_id = ? AND is_primary = ?", productID, false).
		Order("created_at ASC, id ASC").
		Find(&links).Error
	if err != nil {
		logger.Error("Failed to find secondary links by product in database", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return links, nil
}

func (r *productCategoryRepository) FindByCategory(categoryID uint) ([]model.ProductCategory, error) {
	var links []model.ProductCategory
	err := r.db.Where("category_id = ?", categoryID).
		Order("created_at ASC, id ASC").
		Find(&links).Error
	if err != nil {
		logger.Error("Failed to find links by category in database", err, map[string]interface{}{
			"category_id": categoryID,
		})
		return nil, err
	}
	return links, nil
}

func (r *productCategoryRepository) CountByProduct(productID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.ProductCategory{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

func (r *productCategoryRepository) CountByCategory(categoryID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.ProductCategory{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	return count, err
}

func (r *productCategoryRepository) Delete(id uint) error {
	logger.Debug("Deleting product-category link from database", map[string]interface{}{
		"link_id": id,
	})

	if err := r.db.Delete(&model.ProductCategory{}, id).Error; err != nil {
		logger.Error("Failed to delete product-category link from database", err, map[string]interface{}{
			"link_id": id,
		})
		return err
	}
	return nil
}

func (r *productCategoryRepository) DeleteByProduct(productID uint) error {
	logger.Debug("Deleting all links for product from database", map[string]interface{}{
		"product_id": productID,
	})

	err := r.db.Where("product_id = ?", productID).Delete(&model.ProductCategory{}).Error
	if err != nil {
		logger.Error("Failed to delete links for product from database", err, map[string]interface{}{
			"product_id": productID,
		})
		return err
	}
	return nil
}

func (r *productCategoryRepository) DeleteByCategory(categoryID uint) error {
	logger.Debug("Deleting all links for category from database", map[string]interface{}{
		"category_id": categoryID,
	})

	err := r.db.Where("category_id = ?", categoryID).Delete(&model.ProductCategory{}).Error
	if err != nil {
		logger.Error("Failed to delete links for category from database", err, map[string]interface{}{
			"category_id": categoryID,
		})
		return err
	}
	return nil
}

func (r *productCategoryRepository) TopProductsByCategoryCount(limit int) ([]ProductCategoryCount, error) {
	var results []ProductCategoryCount
	err := r.db.Table("product_categories").
		Select("product_categories.product_id, products.name AS product_name, COUNT(*) AS category_count").
		Joins("JOIN products ON products.id = product_categories.product_id").
		Group("product_categories.product_id, products.name").
		Order("category_count DESC, product_categories.product_id ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		logger.Error("Failed to rank products by category count", err, nil)
		return nil, err
	}
	return results, nil
}

func (r *productCategoryRepository) TopCategoriesByProductCount(limit int) ([]CategoryUsage, error) {
	var results []CategoryUsage
	err := r.db.Table("product_categories").
		Select("product_categories.category_id, categories.name AS category_name, COUNT(*) AS product_count").
		Joins("JOIN categories ON categories.id = product_categories.category_id").
		Group("product_categories.category_id, categories.name").
		Order("product_count DESC, product_categories.category_id ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		logger.Error("Failed to rank categories by product count", err, nil)
		return nil, err
	}
	return results, nil
}
