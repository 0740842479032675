package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"gorm.io/gorm"
)

func setupCategoryServiceTest(t *testing.T) (*gorm.DB, CategoryService, ProductCategoryService) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	linkRepo := repository.NewProductCategoryRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	categoryRepo := repository.NewCategoryRepository(testDB)

	linkSvc := NewProductCategoryService(linkRepo, productRepo, categoryRepo, testDB)
	categorySvc := NewCategoryService(categoryRepo, linkSvc, testDB)
	return testDB, categorySvc, linkSvc
}

func TestCategoryService_CreateCategory(t *testing.T) {
	testDB, svc, _ := setupCategoryServiceTest(t)
	defer db.CleanupTestDB(testDB)

	t.Run("Valid category", func(t *testing.T) {
		category, err := svc.CreateCategory(CreateCategoryInput{
			Name:        "Camisetas",
			Description: "Camisetas y tops",
		})
		require.NoError(t, err)
		assert.NotZero(t, category.ID)
		assert.Equal(t, "camisetas", category.Slug)
		assert.True(t, category.Active)
	})

	t.Run("Duplicate name rejected", func(t *testing.T) {
		_, err := svc.CreateCategory(CreateCategoryInput{Name: "Camisetas"})
		assert.ErrorIs(t, err, ErrCategoryNameExists)
	})

	t.Run("Name too short", func(t *testing.T) {
		_, err := svc.CreateCategory(CreateCategoryInput{Name: "X"})
		assert.ErrorIs(t, err, ErrInvalidCategoryName)
	})

	t.Run("Description too long", func(t *testing.T) {
		_, err := svc.CreateCategory(CreateCategoryInput{
			Name:        "Pantalones",
			Description: strings.Repeat("a", 501),
		})
		assert.ErrorIs(t, err, ErrCategoryDescTooLong)
	})

	t.Run("Multibyte name measured in characters", func(t *testing.T) {
		// 100 runes but well over 100 bytes in UTF-8
		category, err := svc.CreateCategory(CreateCategoryInput{
			Name:        "Añil y más " + strings.Repeat("ñ", 89),
			Description: strings.Repeat("ñ", 500),
		})
		require.NoError(t, err)
		assert.NotZero(t, category.ID)
	})
}

func TestCategoryService_UpdateCategory(t *testing.T) {
	testDB, svc, _ := setupCategoryServiceTest(t)
	defer db.CleanupTestDB(testDB)

	category, err := svc.CreateCategory(CreateCategoryInput{Name: "Camisetas"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(CreateCategoryInput{Name: "Abrigos"})
	require.NoError(t, err)

	t.Run("Rename refreshes slug", func(t *testing.T) {
		newName := "Camisetas de verano"
		updated, err := svc.UpdateCategory(category.ID, UpdateCategoryInput{Name: &newName})
		require.NoError(t, err)
		assert.Equal(t, "camisetas-de-verano", updated.Slug)
	})

	t.Run("Rename to taken name rejected", func(t *testing.T) {
		taken := "Abrigos"
		_, err := svc.UpdateCategory(category.ID, UpdateCategoryInput{Name: &taken})
		assert.ErrorIs(t, err, ErrCategoryNameExists)
	})

	t.Run("Deactivate", func(t *testing.T) {
		inactive := false
		updated, err := svc.UpdateCategory(category.ID, UpdateCategoryInput{Active: &inactive})
		require.NoError(t, err)
		assert.False(t, updated.Active)
	})

	t.Run("Unknown category", func(t *testing.T) {
		name := "Nueva"
		_, err := svc.UpdateCategory(9999, UpdateCategoryInput{Name: &name})
		assert.ErrorIs(t, err, ErrCategoryNotFound)
	})
}

func TestCategoryService_DeleteCategory(t *testing.T) {
	testDB, svc, linkSvc := setupCategoryServiceTest(t)
	defer db.CleanupTestDB(testDB)

	camisetas, err := svc.CreateCategory(CreateCategoryInput{Name: "Camisetas"})
	require.NoError(t, err)
	ofertas, err := svc.CreateCategory(CreateCategoryInput{Name: "Ofertas"})
	require.NoError(t, err)

	product := seedProduct(t, testDB, "Camiseta basica")
	_, err = linkSvc.AddCategory(product.ID, camisetas.ID, true)
	require.NoError(t, err)
	_, err = linkSvc.AddCategory(product.ID, ofertas.ID, false)
	require.NoError(t, err)

	t.Run("Rejected while products link to it", func(t *testing.T) {
		err := svc.DeleteCategory(camisetas.ID)
		assert.ErrorIs(t, err, ErrCategoryInUse)
	})

	t.Run("A secondary-only link still blocks the delete", func(t *testing.T) {
		err := svc.DeleteCategory(ofertas.ID)
		assert.ErrorIs(t, err, ErrCategoryInUse)
	})

	t.Run("Succeeds once the last link is removed", func(t *testing.T) {
		require.NoError(t, linkSvc.RemoveCategory(product.ID, ofertas.ID))
		require.NoError(t, svc.DeleteCategory(ofertas.ID))

		_, err := svc.GetCategoryByID(ofertas.ID)
		assert.ErrorIs(t, err, ErrCategoryNotFound)

		var count int64
		require.NoError(t, testDB.Model(&model.ProductCategory{}).
			Where("category_id = ?", ofertas.ID).
			Count(&count).Error)
		assert.Equal(t, int64(0), count)

		// The other product link is untouched
		primary, err := linkSvc.GetPrimaryCategory(product.ID)
		require.NoError(t, err)
		require.NotNil(t, primary)
		assert.Equal(t, camisetas.ID, primary.ID)
	})

	t.Run("Unknown category", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteCategory(9999), ErrCategoryNotFound)
	})
}

func TestCategoryService_ListCategories(t *testing.T) {
	testDB, svc, _ := setupCategoryServiceTest(t)
	defer db.CleanupTestDB(testDB)

	_, err := svc.CreateCategory(CreateCategoryInput{Name: "Camisetas"})
	require.NoError(t, err)
	abrigos, err := svc.CreateCategory(CreateCategoryInput{Name: "Abrigos"})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateCategory(abrigos.ID, UpdateCategoryInput{Active: &inactive})
	require.NoError(t, err)

	all, err := svc.ListCategories(false, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ListCategories(true, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Camisetas", active[0].Name)
}
