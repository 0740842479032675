package service

import (
	"errors"
	"fmt"

	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCategoryAlreadyLinked = errors.New("product is already linked to category")
	ErrCategoryNotLinked     = errors.New("product is not linked to category")
	ErrCategoryInactive      = errors.New("category is not active")
	ErrPrimaryRequired       = errors.New("a primary category is required")
)

// ProductCategoryService manages the links between products and categories.
// Every product with at least one link has exactly one primary link; the
// rest are secondary. Mutations that touch the primary flag run inside a
// transaction so the rule holds under concurrent writers, with a partial
// unique index as the database-level backstop.
type ProductCategoryService interface {
	AddCategory(productID, categoryID uint, primary bool) (*model.ProductCategory, error)
	RemoveCategory(productID, categoryID uint) error
	SetPrimary(productID, categoryID uint) error
	ReplaceCategories(productID, primaryID uint, secondaryIDs []uint) ([]model.ProductCategory, error)
	GetCategories(productID uint) ([]model.ProductCategory, error)
	GetPrimaryCategory(productID uint) (*model.Category, error)
	GetSecondaryCategories(productID uint) ([]model.Category, error)
	GetProducts(categoryID uint) ([]model.Product, error)
	CountProducts(categoryID uint) (int64, error)
	TopProductsByCategoryCount(limit int) ([]repository.ProductCategoryCount, error)
	TopCategoriesByProductCount(limit int) ([]repository.CategoryUsage, error)

	// Transaction-scoped hooks used by the product and category services
	// when link maintenance must ride along in their own transactions.
	LinkPrimaryTx(tx *gorm.DB, productID, categoryID uint) error
	RetargetPrimaryTx(tx *gorm.DB, productID, newCategoryID uint) error
	CleanupProductTx(tx *gorm.DB, productID uint) error
	CleanupCategoryTx(tx *gorm.DB, categoryID uint) error
}

type productCategoryService struct {
	linkRepo     repository.ProductCategoryRepository
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	db           *gorm.DB
}

func NewProductCategoryService(
	linkRepo repository.ProductCategoryRepository,
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	db *gorm.DB,
) ProductCategoryService {
	return &productCategoryService{
		linkRepo:     linkRepo,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		db:           db,
	}
}

func (s *productCategoryService) AddCategory(productID, categoryID uint, primary bool) (*model.ProductCategory, error) {
	logger.Info("Linking product to category", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
		"primary":     primary,
	})

	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	category, err := s.categoryRepo.FindByID(categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	if !category.Active {
		logger.Warn("Cannot link product to inactive category", map[string]interface{}{
			"product_id":  productID,
			"category_id": categoryID,
		})
		return nil, ErrCategoryInactive
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic while linking category, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"product_id": productID,
			})
		}
	}()

	var existing model.ProductCategory
	err = tx.Where("product_id = ? AND category_id = ?", productID, categoryID).First(&existing).Error
	if err == nil {
		tx.Rollback()
		return nil, ErrCategoryAlreadyLinked
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, err
	}

	// The first link a product gets is always primary.
	var linkCount int64
	if err := tx.Model(&model.ProductCategory{}).Where("product_id = ?", productID).Count(&linkCount).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if linkCount == 0 {
		primary = true
	}

	if primary {
		if err := demotePrimary(tx, productID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	link := &model.ProductCategory{
		ProductID:  productID,
		CategoryID: categoryID,
		IsPrimary:  primary,
	}
	if err := tx.Create(link).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to create product-category link", err, map[string]interface{}{
			"product_id":  productID,
			"category_id": categoryID,
		})
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	link.Category = *category
	logger.Info("Product linked to category", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
		"primary":     link.IsPrimary,
	})
	return link, nil
}

func (s *productCategoryService) RemoveCategory(productID, categoryID uint) error {
	logger.Info("Unlinking product from category", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
	})

	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic while unlinking category, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"product_id": productID,
			})
		}
	}()

	var link model.ProductCategory
	err := tx.Where("product_id = ? AND category_id = ?", productID, categoryID).First(&link).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotLinked
		}
		return err
	}

	if err := tx.Delete(&model.ProductCategory{}, link.ID).Error; err != nil {
		tx.Rollback()
		return err
	}

	// Removing the primary link promotes the oldest remaining link, so a
	// product with links never ends up without a primary category.
	if link.IsPrimary {
		var successor model.ProductCategory
		err := tx.Where("product_id = ?", productID).
			Order("created_at ASC, id ASC").
			First(&successor).Error
		if err == nil {
			if err := tx.Model(&model.ProductCategory{}).
				Where("id = ?", successor.ID).
				Update("is_primary", true).Error; err != nil {
				tx.Rollback()
				return err
			}
			logger.Info("Promoted successor primary category", map[string]interface{}{
				"product_id":  productID,
				"category_id": successor.CategoryID,
			})
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info("Product unlinked from category", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
	})
	return nil
}

func (s *productCategoryService) SetPrimary(productID, categoryID uint) error {
	logger.Info("Setting primary category", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
	})

	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic while setting primary category, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"product_id": productID,
			})
		}
	}()

	var link model.ProductCategory
	err := tx.Where("product_id = ? AND category_id = ?", productID, categoryID).First(&link).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotLinked
		}
		return err
	}

	if link.IsPrimary {
		// Already primary, nothing to do.
		tx.Rollback()
		return nil
	}

	if err := demotePrimary(tx, productID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Model(&model.ProductCategory{}).
		Where("id = ?", link.ID).
		Update("is_primary", true).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info("Primary category set", map[string]interface{}{
		"product_id":  productID,
		"category_id": categoryID,
	})
	return nil
}

func (s *productCategoryService) ReplaceCategories(productID, primaryID uint, secondaryIDs []uint) ([]model.ProductCategory, error) {
	logger.Info("Replacing product categories", map[string]interface{}{
		"product_id":      productID,
		"primary_id":      primaryID,
		"secondary_count": len(secondaryIDs),
	})

	if primaryID == 0 {
		return nil, ErrPrimaryRequired
	}

	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	// Validate every category up front; duplicates and the primary showing
	// up again among the secondaries are collapsed.
	seen := map[uint]bool{primaryID: true}
	ordered := []uint{}
	for _, id := range secondaryIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}

	for id := range seen {
		category, err := s.categoryRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, err
		}
		if !category.Active {
			return nil, ErrCategoryInactive
		}
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic while replacing categories, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"product_id": productID,
			})
		}
	}()

	if err := tx.Where("product_id = ?", productID).Delete(&model.ProductCategory{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	links := []model.ProductCategory{{
		ProductID:  productID,
		CategoryID: primaryID,
		IsPrimary:  true,
	}}
	for _, id := range ordered {
		links = append(links, model.ProductCategory{
			ProductID:  productID,
			CategoryID: id,
		})
	}

	for i := range links {
		if err := tx.Create(&links[i]).Error; err != nil {
			tx.Rollback()
			logger.Error("Failed to recreate product-category link", err, map[string]interface{}{
				"product_id":  productID,
				"category_id": links[i].CategoryID,
			})
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info("Product categories replaced", map[string]interface{}{
		"product_id": productID,
		"link_count": len(links),
	})
	return s.linkRepo.FindByProduct(productID)
}

func (s *productCategoryService) GetCategories(productID uint) ([]model.ProductCategory, error) {
	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return s.linkRepo.FindByProduct(productID)
}

// GetPrimaryCategory returns the product's primary category, or nil when the
// product has no category links at all.
func (s *productCategoryService) GetPrimaryCategory(productID uint) (*model.Category, error) {
	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	link, err := s.linkRepo.FindPrimaryByProduct(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link.Category, nil
}

func (s *productCategoryService) GetSecondaryCategories(productID uint) ([]model.Category, error) {
	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	links, err := s.linkRepo.FindSecondaryByProduct(productID)
	if err != nil {
		return nil, err
	}

	categories := make([]model.Category, 0, len(links))
	for _, link := range links {
		categories = append(categories, link.Category)
	}
	return categories, nil
}

func (s *productCategoryService) GetProducts(categoryID uint) ([]model.Product, error) {
	if _, err := s.categoryRepo.FindByID(categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return s.productRepo.FindWithFilter(repository.ProductFilter{CategoryID: &categoryID})
}

func (s *productCategoryService) CountProducts(categoryID uint) (int64, error) {
	if _, err := s.categoryRepo.FindByID(categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCategoryNotFound
		}
		return 0, err
	}
	return s.linkRepo.CountByCategory(categoryID)
}

func (s *productCategoryService) TopProductsByCategoryCount(limit int) ([]repository.ProductCategoryCount, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.linkRepo.TopProductsByCategoryCount(limit)
}

func (s *productCategoryService) TopCategoriesByProductCount(limit int) ([]repository.CategoryUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.linkRepo.TopCategoriesByProductCount(limit)
}

// LinkPrimaryTx links a product to its primary category inside the caller's
// transaction. Used when a product is created with its mandatory category.
func (s *productCategoryService) LinkPrimaryTx(tx *gorm.DB, productID, categoryID uint) error {
	if err := demotePrimary(tx, productID); err != nil {
		return err
	}
	return tx.Create(&model.ProductCategory{
		ProductID:  productID,
		CategoryID: categoryID,
		IsPrimary:  true,
	}).Error
}

// RetargetPrimaryTx moves a product's primary link to a new category inside
// the caller's transaction. An existing secondary link to the new category
// is promoted instead of duplicated.
func (s *productCategoryService) RetargetPrimaryTx(tx *gorm.DB, productID, newCategoryID uint) error {
	var current model.ProductCategory
	err := tx.Where("product_id = ? AND is_primary = ?", productID, true).First(&current).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil && current.CategoryID == newCategoryID {
		return nil
	}

	if err := demotePrimary(tx, productID); err != nil {
		return err
	}

	var existing model.ProductCategory
	err = tx.Where("product_id = ? AND category_id = ?", productID, newCategoryID).First(&existing).Error
	if err == nil {
		return tx.Model(&model.ProductCategory{}).
			Where("id = ?", existing.ID).
			Update("is_primary", true).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return tx.Create(&model.ProductCategory{
		ProductID:  productID,
		CategoryID: newCategoryID,
		IsPrimary:  true,
	}).Error
}

// CleanupProductTx removes every link of a product inside the caller's
// transaction. Used before a product is deleted.
func (s *productCategoryService) CleanupProductTx(tx *gorm.DB, productID uint) error {
	return tx.Where("product_id = ?", productID).Delete(&model.ProductCategory{}).Error
}

// CleanupCategoryTx removes every link of a category inside the caller's
// transaction. The category service only deletes categories whose product
// count is zero, so this normally deletes nothing; it exists so interrupted
// or legacy rows cannot survive the category itself.
func (s *productCategoryService) CleanupCategoryTx(tx *gorm.DB, categoryID uint) error {
	return tx.Where("category_id = ?", categoryID).Delete(&model.ProductCategory{}).Error
}

// demotePrimary clears the primary flag on whatever link currently holds it
func demotePrimary(tx *gorm.DB, productID uint) error {
	return tx.Model(&model.ProductCategory{}).
		Where("product_id = ? AND is_primary = ?", productID, true).
		Update("is_primary", false).Error
}
