package service

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidProductName  = errors.New("product name must be between 2 and 200 characters")
	ErrInvalidProductPrice = errors.New("product price must be greater than zero")
	ErrInvalidProductStock = errors.New("product stock cannot be negative")
	ErrDescriptionTooLong  = errors.New("product description cannot exceed 1000 characters")
	ErrInsufficientStock   = errors.New("insufficient stock")
)

type ProductSort string

const (
	ProductSortPrice     ProductSort = "price"
	ProductSortCreatedAt ProductSort = "created_at"
	ProductSortName      ProductSort = "name"
)

type ProductListOptions struct {
	CategoryID    *uint
	Search        string
	ActiveOnly    bool
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Sort          ProductSort
	SortAscending bool
	Limit         int
	Offset        int
}

type CreateProductInput struct {
	Name                 string
	Description          string
	Price                decimal.Decimal
	Stock                int
	ImageURL             string
	CategoryID           uint
	SecondaryCategoryIDs []uint
}

type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
	Active      *bool
	CategoryID  *uint
}

type ProductService interface {
	ListProducts(opts ProductListOptions) ([]model.Product, error)
	GetProductByID(id uint) (*model.Product, error)
	GetProductBySlug(slug string) (*model.Product, error)
	CreateProduct(input CreateProductInput) (*model.Product, error)
	UpdateProduct(id uint, input UpdateProductInput) (*model.Product, error)
	DeleteProduct(id uint) error
	AdjustStock(id uint, delta int) (*model.Product, error)
	GetLowStockProducts(threshold int) ([]model.Product, error)
	GetCatalogTotals() (*CatalogTotals, error)
}

type CatalogTotals struct {
	TotalProducts  int64 `json:"total_products"`
	ActiveProducts int64 `json:"active_products"`
	TotalStock     int64 `json:"total_stock"`
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	linkService  ProductCategoryService
	db           *gorm.DB
}

func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	linkService ProductCategoryService,
	db *gorm.DB,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		linkService:  linkService,
		db:           db,
	}
}

func (s *productService) ListProducts(opts ProductListOptions) ([]model.Product, error) {
	logger.Debug("Listing products", map[string]interface{}{
		"category_id": opts.CategoryID,
		"search":      opts.Search,
		"active_only": opts.ActiveOnly,
		"sort":        opts.Sort,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})

	filter := repository.ProductFilter{
		CategoryID:    opts.CategoryID,
		Search:        opts.Search,
		ActiveOnly:    opts.ActiveOnly,
		MinPrice:      opts.MinPrice,
		MaxPrice:      opts.MaxPrice,
		SortAscending: opts.SortAscending,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	}

	switch opts.Sort {
	case ProductSortPrice:
		filter.SortBy = repository.ProductSortPrice
	case ProductSortName:
		filter.SortBy = repository.ProductSortName
	default:
		filter.SortBy = repository.ProductSortCreatedAt
	}

	return s.productRepo.FindWithFilter(filter)
}

func (s *productService) GetProductByID(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) GetProductBySlug(productSlug string) (*model.Product, error) {
	product, err := s.productRepo.FindBySlug(productSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(input CreateProductInput) (*model.Product, error) {
	logger.Info("Creating product", map[string]interface{}{
		"name":        input.Name,
		"category_id": input.CategoryID,
	})

	if err := validateProductFields(input.Name, input.Description, input.Price, input.Stock); err != nil {
		logger.Warn("Product validation failed", map[string]interface{}{
			"name":   input.Name,
			"reason": err.Error(),
		})
		return nil, err
	}

	category, err := s.categoryRepo.FindByID(input.CategoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	if !category.Active {
		return nil, ErrCategoryInactive
	}

	secondaries := []uint{}
	for _, id := range input.SecondaryCategoryIDs {
		if id == input.CategoryID {
			continue
		}
		secondary, err := s.categoryRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, err
		}
		if !secondary.Active {
			return nil, ErrCategoryInactive
		}
		secondaries = append(secondaries, id)
	}

	productSlug, err := s.uniqueSlug(input.Name)
	if err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        input.Name,
		Slug:        productSlug,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		Active:      true,
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during product creation, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"name": input.Name,
			})
		}
	}()

	if err := tx.Create(product).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to create product", err, map[string]interface{}{
			"name": input.Name,
		})
		return nil, err
	}

	if err := s.linkService.LinkPrimaryTx(tx, product.ID, input.CategoryID); err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, id := range secondaries {
		link := model.ProductCategory{ProductID: product.ID, CategoryID: id}
		if err := tx.Create(&link).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
		"slug":       product.Slug,
	})
	return product, nil
}

func (s *productService) UpdateProduct(id uint, input UpdateProductInput) (*model.Product, error) {
	logger.Info("Updating product", map[string]interface{}{
		"product_id": id,
	})

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if input.Name != nil {
		if n := utf8.RuneCountInString(*input.Name); n < 2 || n > 200 {
			return nil, ErrInvalidProductName
		}
		product.Name = *input.Name
	}
	if input.Description != nil {
		if utf8.RuneCountInString(*input.Description) > 1000 {
			return nil, ErrDescriptionTooLong
		}
		product.Description = *input.Description
	}
	if input.Price != nil {
		if input.Price.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidProductPrice
		}
		product.Price = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, ErrInvalidProductStock
		}
		product.Stock = *input.Stock
	}
	if input.ImageURL != nil {
		product.ImageURL = *input.ImageURL
	}
	if input.Active != nil {
		product.Active = *input.Active
	}

	if input.CategoryID != nil {
		category, err := s.categoryRepo.FindByID(*input.CategoryID)
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
			logger.Error("Panic during product update, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"product_id": id,
			})
		}
	}()

	if err := tx.Save(product).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to update product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}

	if input.CategoryID != nil {
		if err := s.linkService.RetargetPrimaryTx(tx, product.ID, *input.CategoryID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info("Product updated", map[string]interface{}{
		"product_id": product.ID,
	})
	return product, nil
}

func (s *productService) DeleteProduct(id uint) error {
	logger.Info("Deleting product", map[string]interface{}{
		"product_id": id,
	})

	if _, err := s.productRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during product deletion, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"product_id": id,
			})
		}
	}()

	if err := s.linkService.CleanupProductTx(tx, id); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Delete(&model.Product{}, id).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to delete product", err, map[string]interface{}{
			"product_id": id,
		})
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info("Product deleted", map[string]interface{}{
		"product_id": id,
	})
	return nil
}

func (s *productService) AdjustStock(id uint, delta int) (*model.Product, error) {
	logger.Info("Adjusting product stock", map[string]interface{}{
		"product_id": id,
		"delta":      delta,
	})

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if product.Stock+delta < 0 {
		logger.Warn("Stock adjustment would go negative", map[string]interface{}{
			"product_id": id,
			"stock":      product.Stock,
			"delta":      delta,
		})
		return nil, ErrInsufficientStock
	}

	if err := s.productRepo.UpdateStock(id, delta); err != nil {
		return nil, err
	}

	return s.productRepo.FindByID(id)
}

func (s *productService) GetLowStockProducts(threshold int) ([]model.Product, error) {
	if threshold < 0 {
		threshold = 0
	}
	return s.productRepo.FindWithFilter(repository.ProductFilter{
		MaxStock:      &threshold,
		ActiveOnly:    true,
		SortBy:        repository.ProductSortName,
		SortAscending: true,
	})
}

func (s *productService) GetCatalogTotals() (*CatalogTotals, error) {
	total, err := s.productRepo.Count()
	if err != nil {
		return nil, err
	}
	active, err := s.productRepo.CountActive()
	if err != nil {
		return nil, err
	}
	stock, err := s.productRepo.TotalStock()
	if err != nil {
		return nil, err
	}
	return &CatalogTotals{
		TotalProducts:  total,
		ActiveProducts: active,
		TotalStock:     stock,
	}, nil
}

// uniqueSlug derives a URL slug from the product name, suffixing a counter
// when the plain slug is already taken.
func (s *productService) uniqueSlug(name string) (string, error) {
	base := slug.Make(name)
	candidate := base
	for i := 2; ; i++ {
		_, err := s.productRepo.FindBySlug(candidate)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func validateProductFields(name, description string, price decimal.Decimal, stock int) error {
	// Bounds are characters, not bytes, so multibyte names measure right
	if n := utf8.RuneCountInString(name); n < 2 || n > 200 {
		return ErrInvalidProductName
	}
	if utf8.RuneCountInString(description) > 1000 {
		return ErrDescriptionTooLong
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidProductPrice
	}
	if stock < 0 {
		return ErrInvalidProductStock
	}
	return nil
}
