package repository

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"gorm.io/gorm"
)

func setupLinkTest(t *testing.T) (*gorm.DB, ProductCategoryRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	repo := NewProductCategoryRepository(testDB)
	return testDB, repo
}

func createTestProduct(t *testing.T, testDB *gorm.DB, name string) *model.Product {
	product := &model.Product{
		Name:   name,
		Slug:   fmt.Sprintf("slug-%s", name),
		Price:  decimal.NewFromFloat(19.99),
		Stock:  10,
		Active: true,
	}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

func createTestCategory(t *testing.T, testDB *gorm.DB, name string) *model.Category {
	category := &model.Category{
		Name:   name,
		Slug:   fmt.Sprintf("slug-%s", name),
		Active: true,
	}
	require.NoError(t, testDB.Create(category).Error)
	return category
}

func TestProductCategoryRepository_Create(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	category := createTestCategory(t, testDB, "Camisetas")

	link := &model.ProductCategory{
		ProductID:  product.ID,
		CategoryID: category.ID,
		IsPrimary:  true,
	}
	err := repo.Create(link)
	assert.NoError(t, err)
	assert.NotZero(t, link.ID)
}

func TestProductCategoryRepository_DuplicatePairRejected(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	category := createTestCategory(t, testDB, "Camisetas")

	err := repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: category.ID, IsPrimary: true})
	require.NoError(t, err)

	err = repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: category.ID})
	assert.Error(t, err, "the same product/category pair cannot be linked twice")
}

func TestProductCategoryRepository_SecondPrimaryRejected(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	first := createTestCategory(t, testDB, "Camisetas")
	second := createTestCategory(t, testDB, "Ofertas")

	err := repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: first.ID, IsPrimary: true})
	require.NoError(t, err)

	err = repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: second.ID, IsPrimary: true})
	assert.Error(t, err, "a product cannot have two primary links")
}

func TestProductCategoryRepository_FindByProduct(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	primary := createTestCategory(t, testDB, "Camisetas")
	secondaryA := createTestCategory(t, testDB, "Ofertas")
	secondaryB := createTestCategory(t, testDB, "Novedades")

	// Insert secondaries before the primary to confirm ordering
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: secondaryA.ID}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: secondaryB.ID}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: primary.ID, IsPrimary: true}))

	links, err := repo.FindByProduct(product.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)

	assert.True(t, links[0].IsPrimary, "the primary link comes first")
	assert.Equal(t, primary.ID, links[0].CategoryID)
	assert.Equal(t, secondaryA.ID, links[1].CategoryID)
	assert.Equal(t, secondaryB.ID, links[2].CategoryID)
	assert.Equal(t, primary.Name, links[0].Category.Name, "categories are preloaded")
}

func TestProductCategoryRepository_FindPrimaryByProduct(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	primary := createTestCategory(t, testDB, "Camisetas")
	secondary := createTestCategory(t, testDB, "Ofertas")

	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: primary.ID, IsPrimary: true}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: secondary.ID}))

	link, err := repo.FindPrimaryByProduct(product.ID)
	require.NoError(t, err)
	assert.Equal(t, primary.ID, link.CategoryID)

	// A product without links has no primary
	other := createTestProduct(t, testDB, "Pantalon vaquero")
	_, err = repo.FindPrimaryByProduct(other.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductCategoryRepository_FindSecondaryByProduct(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	primary := createTestCategory(t, testDB, "Camisetas")
	secondaryA := createTestCategory(t, testDB, "Ofertas")
	secondaryB := createTestCategory(t, testDB, "Novedades")

	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: primary.ID, IsPrimary: true}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: secondaryA.ID}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: secondaryB.ID}))

	links, err := repo.FindSecondaryByProduct(product.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, secondaryA.ID, links[0].CategoryID)
	assert.Equal(t, secondaryB.ID, links[1].CategoryID)
}

func TestProductCategoryRepository_Counts(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	productA := createTestProduct(t, testDB, "Camiseta basica")
	productB := createTestProduct(t, testDB, "Pantalon vaquero")
	category := createTestCategory(t, testDB, "Ofertas")
	other := createTestCategory(t, testDB, "Camisetas")

	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productA.ID, CategoryID: category.ID, IsPrimary: true}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productA.ID, CategoryID: other.ID}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productB.ID, CategoryID: category.ID, IsPrimary: true}))

	count, err := repo.CountByCategory(category.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountByProduct(productA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestProductCategoryRepository_DeleteByProduct(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	product := createTestProduct(t, testDB, "Camiseta basica")
	categoryA := createTestCategory(t, testDB, "Camisetas")
	categoryB := createTestCategory(t, testDB, "Ofertas")

	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: categoryA.ID, IsPrimary: true}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: product.ID, CategoryID: categoryB.ID}))

	require.NoError(t, repo.DeleteByProduct(product.ID))

	count, err := repo.CountByProduct(product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestProductCategoryRepository_Rankings(t *testing.T) {
	testDB, repo := setupLinkTest(t)
	defer db.CleanupTestDB(testDB)

	productA := createTestProduct(t, testDB, "Camiseta basica")
	productB := createTestProduct(t, testDB, "Pantalon vaquero")
	categoryA := createTestCategory(t, testDB, "Camisetas")
	categoryB := createTestCategory(t, testDB, "Ofertas")
	categoryC := createTestCategory(t, testDB, "Novedades")

	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productA.ID, CategoryID: categoryA.ID, IsPrimary: true}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productA.ID, CategoryID: categoryB.ID}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productA.ID, CategoryID: categoryC.ID}))
	require.NoError(t, repo.Create(&model.ProductCategory{ProductID: productB.ID, CategoryID: categoryB.ID, IsPrimary: true}))

	topProducts, err := repo.TopProductsByCategoryCount(5)
	require.NoError(t, err)
	require.NotEmpty(t, topProducts)
	assert.Equal(t, productA.ID, topProducts[0].ProductID)
	assert.Equal(t, "Camiseta basica", topProducts[0].ProductName)
	assert.Equal(t, int64(3), topProducts[0].CategoryCount)

	topCategories, err := repo.TopCategoriesByProductCount(5)
	require.NoError(t, err)
	require.NotEmpty(t, topCategories)
	assert.Equal(t, categoryB.ID, topCategories[0].CategoryID)
	assert.Equal(t, int64(2), topCategories[0].ProductCount)

	// Limit is honored
	topCategories, err = repo.TopCategoriesByProductCount(1)
	require.NoError(t, err)
	assert.Len(t, topCategories, 1)
}
