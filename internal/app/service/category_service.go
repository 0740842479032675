package service

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryNameExists  = errors.New("category name already exists")
	ErrCategoryInUse       = errors.New("category still has linked products")
	ErrInvalidCategoryName = errors.New("category name must be between 2 and 100 characters")
	ErrCategoryDescTooLong = errors.New("category description cannot exceed 500 characters")
)

type CreateCategoryInput struct {
	Name        string
	Description string
	ImageURL    string
}

type UpdateCategoryInput struct {
	Name        *string
	Description *string
	ImageURL    *string
	Active      *bool
}

type CategoryService interface {
	ListCategories(activeOnly bool, search string) ([]model.Category, error)
	GetCategoryByID(id uint) (*model.Category, error)
	GetCategoryBySlug(slug string) (*model.Category, error)
	CreateCategory(input CreateCategoryInput) (*model.Category, error)
	UpdateCategory(id uint, input UpdateCategoryInput) (*model.Category, error)
	DeleteCategory(id uint) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	linkService  ProductCategoryService
	db           *gorm.DB
}

func NewCategoryService(
	categoryRepo repository.CategoryRepository,
	linkService ProductCategoryService,
	db *gorm.DB,
) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		linkService:  linkService,
		db:           db,
	}
}

func (s *categoryService) ListCategories(activeOnly bool, search string) ([]model.Category, error) {
	return s.categoryRepo.FindWithFilter(repository.CategoryFilter{
		ActiveOnly: activeOnly,
		Search:     search,
	})
}

func (s *categoryService) GetCategoryByID(id uint) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *categoryService) GetCategoryBySlug(categorySlug string) (*model.Category, error) {
	category, err := s.categoryRepo.FindBySlug(categorySlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *categoryService) CreateCategory(input CreateCategoryInput) (*model.Category, error) {
	logger.Info("Creating category", map[string]interface{}{
		"name": input.Name,
	})

	// Bounds are characters, not bytes, so multibyte names measure right
	if n := utf8.RuneCountInString(input.Name); n < 2 || n > 100 {
		return nil, ErrInvalidCategoryName
	}
	if utf8.RuneCountInString(input.Description) > 500 {
		return nil, ErrCategoryDescTooLong
	}

	_, err := s.categoryRepo.FindByName(input.Name)
	if err == nil {
		logger.Warn("Category name already taken", map[string]interface{}{
			"name": input.Name,
		})
		return nil, ErrCategoryNameExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	category := &model.Category{
		Name:        input.Name,
		Slug:        slug.Make(input.Name),
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Active:      true,
	}

	if err := s.categoryRepo.Create(category); err != nil {
		return nil, err
	}

	logger.Info("Category created", map[string]interface{}{
		"category_id": category.ID,
		"name":        category.Name,
	})
	return category, nil
}

func (s *categoryService) UpdateCategory(id uint, input UpdateCategoryInput) (*model.Category, error) {
	logger.Info("Updating category", map[string]interface{}{
		"category_id": id,
	})

	category, err := s.categoryRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	if input.Name != nil && *input.Name != category.Name {
		if n := utf8.RuneCountInString(*input.Name); n < 2 || n > 100 {
			return nil, ErrInvalidCategoryName
		}
		existing, err := s.categoryRepo.FindByName(*input.Name)
		if err == nil && existing.ID != id {
			return nil, ErrCategoryNameExists
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		category.Name = *input.Name
		category.Slug = slug.Make(*input.Name)
	}
	if input.Description != nil {
		if utf8.RuneCountInString(*input.Description) > 500 {
			return nil, ErrCategoryDescTooLong
		}
		category.Description = *input.Description
	}
	if input.ImageURL != nil {
		category.ImageURL = *input.ImageURL
	}
	if input.Active != nil {
		category.Active = *input.Active
	}

	if err := s.categoryRepo.Update(category); err != nil {
		return nil, err
	}

	logger.Info("Category updated", map[string]interface{}{
		"category_id": category.ID,
	})
	return category, nil
}

// DeleteCategory removes a category. The delete is refused while any
// product still links to it, counting secondary links too, so no product
// can silently lose its primary category.
func (s *categoryService) DeleteCategory(id uint) error {
	logger.Info("Deleting category", map[string]interface{}{
		"category_id": id,
	})

	if _, err := s.categoryRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	count, err := s.linkService.CountProducts(id)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Warn("Refusing to delete category with linked products", map[string]interface{}{
			"category_id":   id,
			"product_count": count,
		})
		return ErrCategoryInUse
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during category deletion, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"category_id": id,
			})
		}
	}()

	if err := s.linkService.CleanupCategoryTx(tx, id); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Delete(&model.Category{}, id).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to delete category", err, map[string]interface{}{
			"category_id": id,
		})
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info("Category deleted", map[string]interface{}{
		"category_id": id,
	})
	return nil
}
