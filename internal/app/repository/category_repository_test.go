package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"gorm.io/gorm"
)

func setupCategoryTest(t *testing.T) (*gorm.DB, CategoryRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	repo := NewCategoryRepository(testDB)
	return testDB, repo
}

func TestCategoryRepository_Create(t *testing.T) {
	testDB, repo := setupCategoryTest(t)
	defer db.CleanupTestDB(testDB)

	category := &model.Category{
		Name:        "Camisetas",
		Slug:        "camisetas",
		Description: "Camisetas y tops",
		Active:      true,
	}

	err := repo.Create(category)
	assert.NoError(t, err)
	assert.NotZero(t, category.ID)
}

func TestCategoryRepository_DuplicateNameRejected(t *testing.T) {
	testDB, repo := setupCategoryTest(t)
	defer db.CleanupTestDB(testDB)

	require.NoError(t, repo.Create(&model.Category{Name: "Camisetas", Slug: "camisetas", Active: true}))

	err := repo.Create(&model.Category{Name: "Camisetas", Slug: "camisetas-2", Active: true})
	assert.Error(t, err, "category names are unique")
}

func TestCategoryRepository_FindByName(t *testing.T) {
	testDB, repo := setupCategoryTest(t)
	defer db.CleanupTestDB(testDB)

	require.NoError(t, repo.Create(&model.Category{Name: "Camisetas", Slug: "camisetas", Active: true}))

	found, err := repo.FindByName("Camisetas")
	require.NoError(t, err)
	assert.Equal(t, "Camisetas", found.Name)

	_, err = repo.FindByName("Inexistente")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCategoryRepository_FindWithFilter(t *testing.T) {
	testDB, repo := setupCategoryTest(t)
	defer db.CleanupTestDB(testDB)

	require.NoError(t, repo.Create(&model.Category{Name: "Camisetas", Slug: "camisetas", Active: true}))
	require.NoError(t, repo.Create(&model.Category{Name: "Abrigos", Slug: "abrigos", Active: true}))
	require.NoError(t, repo.Create(&model.Category{Name: "Descatalogados", Slug: "descatalogados", Active: false}))

	t.Run("All categories sorted by name", func(t *testing.T) {
		found, err := repo.FindAll()
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, "Abrigos", found[0].Name)
	})

	t.Run("Active only", func(t *testing.T) {
		found, err := repo.FindWithFilter(CategoryFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("Search", func(t *testing.T) {
		found, err := repo.FindWithFilter(CategoryFilter{Search: "Abri"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Abrigos", found[0].Name)
	})
}

func TestCategoryRepository_Update(t *testing.T) {
	testDB, repo := setupCategoryTest(t)
	defer db.CleanupTestDB(testDB)

	category := &model.Category{Name: "Camisetas", Slug: "camisetas", Active: true}
	require.NoError(t, repo.Create(category))

	category.Description = "Actualizada"
	category.Active = false
	require.NoError(t, repo.Update(category))

	found, err := repo.FindByID(category.ID)
	require.NoError(t, err)
	assert.Equal(t, "Actualizada", found.Description)
	assert.False(t, found.Active)
}

func TestCategoryRepository_Delete(t *testing.T) {
	testDB, repo := setupCategoryTest(t)
	defer db.CleanupTestDB(testDB)

	category := &model.Category{Name: "Camisetas", Slug: "camisetas", Active: true}
	require.NoError(t, repo.Create(category))

	require.NoError(t, repo.Delete(category.ID))

	_, err := repo.FindByID(category.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
