package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// Report is a generated export ready to be streamed to a client
type Report struct {
	FileName    string
	ContentType string
	Data        []byte
}

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

type ReportService interface {
	UsersExcel() (*Report, error)
	ProductsExcel() (*Report, error)
	ProductsPDF() (*Report, error)
	CategoriesPDF() (*Report, error)
	InventoryPDF(lowStockThreshold int) (*Report, error)
}

type reportService struct {
	userRepo     repository.UserRepository
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	linkRepo     repository.ProductCategoryRepository
}

func NewReportService(
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	linkRepo repository.ProductCategoryRepository,
) ReportService {
	return &reportService{
		userRepo:     userRepo,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		linkRepo:     linkRepo,
	}
}

func (s *reportService) UsersExcel() (*Report, error) {
	logger.Info("Generating users Excel report", nil)

	users, err := s.userRepo.FindAll()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Users"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"ID", "Username", "Email", "First Name", "Last Name", "Role", "Active", "Created At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, user := range users {
		values := []interface{}{
			user.ID,
			user.Username,
			user.Email,
			user.FirstName,
			user.LastName,
			string(user.Role),
			user.Active,
			user.CreatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		logger.Error("Failed to write users Excel report", err, nil)
		return nil, err
	}

	logger.Info("Users Excel report generated", map[string]interface{}{
		"user_count": len(users),
	})
	return &Report{
		FileName:    reportFileName("users", "xlsx"),
		ContentType: contentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

func (s *reportService) ProductsExcel() (*Report, error) {
	logger.Info("Generating products Excel report", nil)

	products, err := s.productRepo.FindAll()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Products"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"ID", "Name", "Description", "Price", "Stock", "Primary Category", "Categories", "Active"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, product := range products {
		primaryName, categoryNames, err := s.categoryColumns(product.ID)
		if err != nil {
			return nil, err
		}

		values := []interface{}{
			product.ID,
			product.Name,
			product.Description,
			product.Price.StringFixed(2),
			product.Stock,
			primaryName,
			categoryNames,
			product.Active,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		logger.Error("Failed to write products Excel report", err, nil)
		return nil, err
	}

	logger.Info("Products Excel report generated", map[string]interface{}{
		"product_count": len(products),
	})
	return &Report{
		FileName:    reportFileName("products", "xlsx"),
		ContentType: contentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

func (s *reportService) ProductsPDF() (*Report, error) {
	logger.Info("Generating products PDF report", nil)

	products, err := s.productRepo.FindAll()
	if err != nil {
		return nil, err
	}

	pdf := newReportPDF("Product Catalog")

	widths := []float64{15, 60, 30, 20, 55}
	writePDFHeader(pdf, widths, []string{"ID", "Name", "Price", "Stock", "Primary Category"})

	pdf.SetFont("Helvetica", "", 9)
	for _, product := range products {
		primaryName, _, err := s.categoryColumns(product.ID)
		if err != nil {
			return nil, err
		}
		cells := []string{
			fmt.Sprintf("%d", product.ID),
			truncate(product.Name, 40),
			product.Price.StringFixed(2),
			fmt.Sprintf("%d", product.Stock),
			truncate(primaryName, 35),
		}
		writePDFRow(pdf, widths, cells)
	}

	return finishPDF(pdf, "products")
}

func (s *reportService) CategoriesPDF() (*Report, error) {
	logger.Info("Generating categories PDF report", nil)

	categories, err := s.categoryRepo.FindAll()
	if err != nil {
		return nil, err
	}

	pdf := newReportPDF("Category Overview")

	widths := []float64{15, 55, 75, 20, 15}
	writePDFHeader(pdf, widths, []string{"ID", "Name", "Description", "Products", "Active"})

	pdf.SetFont("Helvetica", "", 9)
	for _, category := range categories {
		count, err := s.linkRepo.CountByCategory(category.ID)
		if err != nil {
			return nil, err
		}
		active := "no"
		if category.Active {
			active = "yes"
		}
		cells := []string{
			fmt.Sprintf("%d", category.ID),
			truncate(category.Name, 35),
			truncate(category.Description, 55),
			fmt.Sprintf("%d", count),
			active,
		}
		writePDFRow(pdf, widths, cells)
	}

	return finishPDF(pdf, "categories")
}

func (s *reportService) InventoryPDF(lowStockThreshold int) (*Report, error) {
	logger.Info("Generating inventory PDF report", map[string]interface{}{
		"low_stock_threshold": lowStockThreshold,
	})

	products, err := s.productRepo.FindWithFilter(repository.ProductFilter{
		SortBy:        repository.ProductSortName,
		SortAscending: true,
	})
	if err != nil {
		return nil, err
	}

	pdf := newReportPDF("Inventory Status")

	widths := []float64{15, 70, 25, 25, 45}
	writePDFHeader(pdf, widths, []string{"ID", "Name", "Stock", "Status", "Value"})

	pdf.SetFont("Helvetica", "", 9)
	lowCount := 0
	for _, product := range products {
		status := "ok"
		if product.Stock <= lowStockThreshold {
			status = "LOW"
			lowCount++
		}
		value := product.Price.Mul(decimal.NewFromInt(int64(product.Stock)))
		cells := []string{
			fmt.Sprintf("%d", product.ID),
			truncate(product.Name, 45),
			fmt.Sprintf("%d", product.Stock),
			status,
			value.StringFixed(2),
		}
		writePDFRow(pdf, widths, cells)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 8, fmt.Sprintf("Products below threshold (%d): %d of %d", lowStockThreshold, lowCount, len(products)), "", 1, "L", false, 0, "")

	return finishPDF(pdf, "inventory")
}

func (s *reportService) categoryColumns(productID uint) (string, string, error) {
	links, err := s.linkRepo.FindByProduct(productID)
	if err != nil {
		return "", "", err
	}

	primaryName := ""
	names := ""
	for _, link := range links {
		if link.IsPrimary {
			primaryName = link.Category.Name
		}
		if names != "" {
			names += ", "
		}
		names += link.Category.Name
	}
	return primaryName, names, nil
}

func newReportPDF(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+time.Now().Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	return pdf
}

func writePDFHeader(pdf *fpdf.Fpdf, widths []float64, headers []string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func writePDFRow(pdf *fpdf.Fpdf, widths []float64, cells []string) {
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 7, cell, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func finishPDF(pdf *fpdf.Fpdf, name string) (*Report, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		logger.Error("Failed to write PDF report", err, map[string]interface{}{
			"report": name,
		})
		return nil, err
	}

	return &Report{
		FileName:    reportFileName(name, "pdf"),
		ContentType: contentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

func reportFileName(name, ext string) string {
	return fmt.Sprintf("%s_%s.%s", name, time.Now().Format("20060102_150405"), ext)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
