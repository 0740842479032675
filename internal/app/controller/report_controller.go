package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	apperrors "github.com/tiendaropa/catalog-backend/internal/errors"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
)

type ReportController struct {
	reportService service.ReportService
}

func NewReportController(reportService service.ReportService) *ReportController {
	return &ReportController{
		reportService: reportService,
	}
}

// serveReport streams a generated report as a file download.
func (ctrl *ReportController) serveReport(c *gin.Context, report *service.Report, err error, name string) {
	log := middleware.GetLoggerFromContext(c)

	if err != nil {
		log.Error("Failed to generate report", err, map[string]interface{}{
			"report": name,
		})
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.ReportGenerationFailed, "Failed to generate report")
		return
	}

	log.Info("Report generated successfully", map[string]interface{}{
		"report": name,
		"bytes":  len(report.Data),
	})

	c.Header("Content-Disposition", "attachment; filename="+report.FileName)
	c.Data(http.StatusOK, report.ContentType, report.Data)
}

// ListReports returns the available report endpoints (Admin only)
// GET /api/v1/admin/reports
func (ctrl *ReportController) ListReports(c *gin.Context) {
	reports := []gin.H{
		{"name": "users_excel", "format": "xlsx", "path": "/api/v1/admin/reports/users/excel"},
		{"name": "products_excel", "format": "xlsx", "path": "/api/v1/admin/reports/products/excel"},
		{"name": "products_pdf", "format": "pdf", "path": "/api/v1/admin/reports/products/pdf"},
		{"name": "categories_pdf", "format": "pdf", "path": "/api/v1/admin/reports/categories/pdf"},
		{"name": "inventory_pdf", "format": "pdf", "path": "/api/v1/admin/reports/inventory/pdf"},
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// UsersExcel exports all users to an Excel workbook (Admin only)
// GET /api/v1/admin/reports/users/excel
func (ctrl *ReportController) UsersExcel(c *gin.Context) {
	report, err := ctrl.reportService.UsersExcel()
	ctrl.serveReport(c, report, err, "users_excel")
}

// ProductsExcel exports the catalog to an Excel workbook (Admin only)
// GET /api/v1/admin/reports/products/excel
func (ctrl *ReportController) ProductsExcel(c *gin.Context) {
	report, err := ctrl.reportService.ProductsExcel()
	ctrl.serveReport(c, report, err, "products_excel")
}

// ProductsPDF exports the catalog to a PDF document (Admin only)
// GET /api/v1/admin/reports/products/pdf
func (ctrl *ReportController) ProductsPDF(c *gin.Context) {
	report, err := ctrl.reportService.ProductsPDF()
	ctrl.serveReport(c, report, err, "products_pdf")
}

// CategoriesPDF exports categories and their usage to PDF (Admin only)
// GET /api/v1/admin/reports/categories/pdf
func (ctrl *ReportController) CategoriesPDF(c *gin.Context) {
	report, err := ctrl.reportService.CategoriesPDF()
	ctrl.serveReport(c, report, err, "categories_pdf")
}

// InventoryPDF exports stock levels and valuation to PDF (Admin only)
// GET /api/v1/admin/reports/inventory/pdf?threshold=5
func (ctrl *ReportController) InventoryPDF(c *gin.Context) {
	threshold := 5
	if thresholdStr := c.Query("threshold"); thresholdStr != "" {
		parsed, err := strconv.Atoi(thresholdStr)
		if err != nil || parsed < 0 {
			apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "Invalid threshold")
			return
		}
		threshold = parsed
	}

	report, err := ctrl.reportService.InventoryPDF(threshold)
	ctrl.serveReport(c, report, err, "inventory_pdf")
}
