package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"gorm.io/gorm"
)

func setupProductTest(t *testing.T) (*gorm.DB, ProductRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	repo := NewProductRepository(testDB)
	return testDB, repo
}

func TestProductRepository_Create(t *testing.T) {
	testDB, repo := setupProductTest(t)
	defer db.CleanupTestDB(testDB)

	product := &model.Product{
		Name:        "Camiseta basica blanca",
		Slug:        "camiseta-basica-blanca",
		Description: "Camiseta de algodon 100%",
		Price:       decimal.NewFromFloat(12.99),
		Stock:       50,
		Active:      true,
	}

	err := repo.Create(product)
	assert.NoError(t, err)
	assert.NotZero(t, product.ID)
}

func TestProductRepository_FindByID(t *testing.T) {
	testDB, repo := setupProductTest(t)
	defer db.CleanupTestDB(testDB)

	product := &model.Product{
		Name:  "Camiseta basica",
		Price: decimal.NewFromFloat(12.99),
		Stock: 10,
	}
	require.NoError(t, repo.Create(product))

	tests := []struct {
		name    string
		id      uint
		wantErr bool
	}{
		{
			name:    "Existing product",
			id:      product.ID,
			wantErr: false,
		},
		{
			name:    "Non-existing product",
			id:      9999,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repo.FindByID(tt.id)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, found)
			} else {
				require.NoError(t, err)
				require.NotNil(t, found)
				assert.Equal(t, product.Name, found.Name)
				assert.True(t, product.Price.Equal(found.Price))
			}
		})
	}
}

func TestProductRepository_FindWithFilter(t *testing.T) {
	testDB, repo := setupProductTest(t)
	defer db.CleanupTestDB(testDB)

	category := createTestCategory(t, testDB, "Camisetas")

	cheap := &model.Product{Name: "Camiseta basica", Price: decimal.NewFromFloat(9.99), Stock: 5, Active: true}
	pricey := &model.Product{Name: "Abrigo de lana", Price: decimal.NewFromFloat(89.99), Stock: 3, Active: true}
	hidden := &model.Product{Name: "Camiseta retirada", Price: decimal.NewFromFloat(4.99), Stock: 0, Active: false}
	for _, p := range []*model.Product{cheap, pricey, hidden} {
		require.NoError(t, repo.Create(p))
	}
	require.NoError(t, testDB.Create(&model.ProductCategory{
		ProductID:  cheap.ID,
		CategoryID: category.ID,
		IsPrimary:  true,
	}).Error)

	t.Run("Search by name", func(t *testing.T) {
		found, err := repo.FindWithFilter(ProductFilter{Search: "Camiseta"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("Active only", func(t *testing.T) {
		found, err := repo.FindWithFilter(ProductFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("By category", func(t *testing.T) {
		found, err := repo.FindWithFilter(ProductFilter{CategoryID: &category.ID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, cheap.ID, found[0].ID)
	})

	t.Run("Price range", func(t *testing.T) {
		min := decimal.NewFromFloat(5)
		max := decimal.NewFromFloat(50)
		found, err := repo.FindWithFilter(ProductFilter{MinPrice: &min, MaxPrice: &max})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, cheap.ID, found[0].ID)
	})

	t.Run("Sort by price ascending", func(t *testing.T) {
		found, err := repo.FindWithFilter(ProductFilter{SortBy: ProductSortPrice, SortAscending: true})
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, hidden.ID, found[0].ID)
		assert.Equal(t, pricey.ID, found[2].ID)
	})

	t.Run("Pagination", func(t *testing.T) {
		found, err := repo.FindWithFilter(ProductFilter{SortBy: ProductSortName, SortAscending: true, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, found, 1)
	})

	t.Run("Low stock", func(t *testing.T) {
		threshold := 3
		found, err := repo.FindWithFilter(ProductFilter{MaxStock: &threshold})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}

func TestProductRepository_UpdateStock(t *testing.T) {
	testDB, repo := setupProductTest(t)
	defer db.CleanupTestDB(testDB)

	product := &model.Product{Name: "Camiseta basica", Price: decimal.NewFromFloat(12.99), Stock: 10}
	require.NoError(t, repo.Create(product))

	require.NoError(t, repo.UpdateStock(product.ID, -3))

	found, err := repo.FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, found.Stock)
}

func TestProductRepository_Delete(t *testing.T) {
	testDB, repo := setupProductTest(t)
	defer db.CleanupTestDB(testDB)

	product := &model.Product{Name: "Camiseta basica", Price: decimal.NewFromFloat(12.99)}
	require.NoError(t, repo.Create(product))

	require.NoError(t, repo.Delete(product.ID))

	_, err := repo.FindByID(product.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
