package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tiendaropa/catalog-backend/config"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

// Expected columns: name, description, price, stock, image_url,
// primary_category, secondary_categories (semicolon separated), active.
const expectedColumns = 8

type productRow struct {
	name                string
	description         string
	price               decimal.Decimal
	stock               int
	imageURL            string
	primaryCategory     string
	secondaryCategories []string
	active              bool
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	linkRepo := repository.NewProductCategoryRepository(db.GetDB())

	linkService := service.NewProductCategoryService(linkRepo, productRepo, categoryRepo, db.GetDB())
	categoryService := service.NewCategoryService(categoryRepo, linkService, db.GetDB())
	productService := service.NewProductService(productRepo, categoryRepo, linkService, db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total products to import: %d\n", len(products))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	categoryIDs := make(map[string]uint)
	imported := 0
	failed := 0

	for _, row := range products {
		primaryID, err := ensureCategory(categoryService, categoryIDs, row.primaryCategory)
		if err != nil {
			fmt.Printf("  Skipping %q: %v\n", row.name, err)
			failed++
			continue
		}

		var secondaryIDs []uint
		for _, name := range row.secondaryCategories {
			id, err := ensureCategory(categoryService, categoryIDs, name)
			if err != nil {
				fmt.Printf("  Skipping secondary category %q for %q: %v\n", name, row.name, err)
				continue
			}
			if id != primaryID {
				secondaryIDs = append(secondaryIDs, id)
			}
		}

		product, err := productService.CreateProduct(service.CreateProductInput{
			Name:                 row.name,
			Description:          row.description,
			Price:                row.price,
			Stock:                row.stock,
			ImageURL:             row.imageURL,
			CategoryID:           primaryID,
			SecondaryCategoryIDs: secondaryIDs,
		})
		if err != nil {
			fmt.Printf("  Skipping %q: %v\n", row.name, err)
			failed++
			continue
		}

		if !row.active {
			inactive := false
			if _, err := productService.UpdateProduct(product.ID, service.UpdateProductInput{Active: &inactive}); err != nil {
				fmt.Printf("  Failed to deactivate %q: %v\n", row.name, err)
			}
		}

		imported++
		if imported%100 == 0 {
			fmt.Printf("Imported %d products...\n", imported)
		}
	}

	fmt.Println("Import completed!")
	fmt.Printf("  Imported: %d\n", imported)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Categories created or reused: %d\n", len(categoryIDs))
}

// ensureCategory resolves a category name to its ID, creating it on first use.
func ensureCategory(categoryService service.CategoryService, cache map[string]uint, name string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("empty category name")
	}

	if id, ok := cache[name]; ok {
		return id, nil
	}

	category, err := categoryService.CreateCategory(service.CreateCategoryInput{Name: name})
	if err != nil {
		if !errors.Is(err, service.ErrCategoryNameExists) {
			return 0, err
		}
		existing, err := categoryService.ListCategories(false, name)
		if err != nil {
			return 0, err
		}
		for i := range existing {
			if strings.EqualFold(existing[i].Name, name) {
				cache[name] = existing[i].ID
				return existing[i].ID, nil
			}
		}
		return 0, fmt.Errorf("category %q exists but could not be found", name)
	}

	cache[name] = category.ID
	return category.ID, nil
}

func readProductsFromXLSX(filePath string) ([]productRow, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	fmt.Printf("Reading sheet: %s\n", sheetName)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	var products []productRow
	seenNames := make(map[string]bool)
	skippedCount := 0
	invalidPriceCount := 0

	for i, row := range rows {
		if i == 0 {
			fmt.Printf("Headers: %v\n", row)
			continue
		}

		if len(row) < expectedColumns {
			// GetRows drops trailing empty cells, pad so optional columns parse
			padded := make([]string, expectedColumns)
			copy(padded, row)
			row = padded
		}

		name := strings.TrimSpace(row[0])
		description := strings.TrimSpace(row[1])
		priceStr := strings.TrimSpace(row[2])
		stockStr := strings.TrimSpace(row[3])
		imageURL := strings.TrimSpace(row[4])
		primaryCategory := strings.TrimSpace(row[5])
		secondaryRaw := strings.TrimSpace(row[6])
		activeStr := strings.TrimSpace(row[7])

		if name == "" || primaryCategory == "" {
			skippedCount++
			continue
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil || price.IsNegative() {
			invalidPriceCount++
			skippedCount++
			continue
		}

		stock := 0
		if stockStr != "" {
			stock, err = strconv.Atoi(stockStr)
			if err != nil || stock < 0 {
				skippedCount++
				continue
			}
		}

		var secondaryCategories []string
		if secondaryRaw != "" {
			for _, part := range strings.Split(secondaryRaw, ";") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					secondaryCategories = append(secondaryCategories, trimmed)
				}
			}
		}

		active := true
		if activeStr != "" {
			lowered := strings.ToLower(activeStr)
			active = lowered != "no" && lowered != "false" && lowered != "0"
		}

		key := strings.ToLower(name)
		if seenNames[key] {
			skippedCount++
			continue
		}
		seenNames[key] = true

		products = append(products, productRow{
			name:                name,
			description:         description,
			price:               price,
			stock:               stock,
			imageURL:            imageURL,
			primaryCategory:     primaryCategory,
			secondaryCategories: secondaryCategories,
			active:              active,
		})
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total rows: %d\n", len(rows)-1)
	fmt.Printf("  Valid products: %d\n", len(products))
	fmt.Printf("  Skipped rows: %d\n", skippedCount)
	fmt.Printf("  Rows with invalid prices: %d\n", invalidPriceCount)

	return products, nil
}
