package db

import (
	"github.com/gosimple/slug"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
)

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.ProductCategory{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	// At most one primary link per product. AutoMigrate cannot express a
	// partial index, so it is created here; both postgres and sqlite
	// support this syntax.
	if err := DB.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_product_categories_primary ON product_categories (product_id) WHERE is_primary",
	).Error; err != nil {
		logger.Error("Failed to create primary link index", err)
		return err
	}

	if err := seedInitialData(); err != nil {
		logger.Error("Failed to seed initial data during migration", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed adds initial data to the database (optional)
func Seed() error {
	return seedInitialData()
}

func seedInitialData() error {
	logger.Info("Seeding initial data...")

	if err := seedCategories(); err != nil {
		logger.Error("Failed to seed categories", err)
		return err
	}

	logger.Info("Initial data seeded successfully")
	return nil
}

// seedCategories creates the default storefront categories
func seedCategories() error {
	var count int64
	if err := DB.Model(&model.Category{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		logger.Info("Categories already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	logger.Info("Seeding category data...")

	categories := []model.Category{
		{Name: "Camisetas", Description: "Camisetas y tops de manga corta y larga", Active: true},
		{Name: "Pantalones", Description: "Pantalones, vaqueros y joggers", Active: true},
		{Name: "Vestidos", Description: "Vestidos casuales y de fiesta", Active: true},
		{Name: "Abrigos", Description: "Abrigos, chaquetas y cazadoras", Active: true},
		{Name: "Calzado", Description: "Zapatos, zapatillas y botas", Active: true},
		{Name: "Accesorios", Description: "Cinturones, gorras, bufandas y complementos", Active: true},
		{Name: "Ofertas", Description: "Productos rebajados por tiempo limitado", Active: true},
	}

	totalInserted := 0
	for _, category := range categories {
		category.Slug = slug.Make(category.Name)
		if err := DB.Create(&category).Error; err != nil {
			logger.Error("Failed to create category", err, map[string]interface{}{
				"category": category.Name,
			})
			return err
		}
		totalInserted++
	}

	logger.Info("Categories seeded successfully", map[string]interface{}{
		"total_categories": totalInserted,
	})

	return nil
}
