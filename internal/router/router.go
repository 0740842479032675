package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tiendaropa/catalog-backend/config"
	"github.com/tiendaropa/catalog-backend/internal/app/controller"
	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
)

type Router struct {
	authController     *controller.AuthController
	userController     *controller.UserController
	categoryController *controller.CategoryController
	productController  *controller.ProductController
	linkController     *controller.ProductCategoryController
	reportController   *controller.ReportController
	uploadController   *controller.UploadController
	wsController       *controller.WSController
	authMiddleware     *middleware.AuthMiddleware
	config             *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	userController *controller.UserController,
	categoryController *controller.CategoryController,
	productController *controller.ProductController,
	linkController *controller.ProductCategoryController,
	reportController *controller.ReportController,
	uploadController *controller.UploadController,
	wsController *controller.WSController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:     authController,
		userController:     userController,
		categoryController: categoryController,
		productController:  productController,
		linkController:     linkController,
		reportController:   reportController,
		uploadController:   uploadController,
		wsController:       wsController,
		authMiddleware:     authMiddleware,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Catalog API is running",
		})
	})

	// Serve locally stored uploads
	if r.config.Storage.Driver == "local" {
		router.Static(r.config.Upload.PublicPath, r.config.Upload.Dir)
	}

	adminOnly := []gin.HandlerFunc{
		r.authMiddleware.Authenticate(),
		r.authMiddleware.RequireRole(string(model.RoleAdmin)),
	}

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.RefreshToken)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.GetMe)
		}

		users := v1.Group("/users")
		users.Use(r.authMiddleware.Authenticate())
		{
			users.PUT("/me/password", r.userController.ChangePassword)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", r.categoryController.ListCategories)
			categories.GET("/:id", r.categoryController.GetCategory)
			categories.GET("/slug/:slug", r.categoryController.GetCategoryBySlug)
			categories.GET("/:id/products", r.categoryController.GetCategoryProducts)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProduct)
			products.GET("/slug/:slug", r.productController.GetProductBySlug)
			products.GET("/:id/categories", r.linkController.GetProductCategories)
			products.GET("/:id/categories/primary", r.linkController.GetPrimaryCategory)
			products.GET("/:id/categories/secondary", r.linkController.GetSecondaryCategories)
		}

		stats := v1.Group("/stats")
		{
			stats.GET("/products/top", r.linkController.TopProducts)
			stats.GET("/products/totals", r.productController.GetCatalogTotals)
			stats.GET("/categories/top", r.linkController.TopCategories)
		}

		ws := v1.Group("/ws")
		ws.Use(r.authMiddleware.Authenticate())
		{
			ws.GET("", r.wsController.Connect)
		}

		admin := v1.Group("/admin")
		admin.Use(adminOnly...)
		{
			admin.GET("/users", r.userController.ListUsers)
			admin.GET("/users/:id", r.userController.GetUser)
			admin.PUT("/users/:id", r.userController.UpdateUser)
			admin.DELETE("/users/:id", r.userController.DeleteUser)

			admin.POST("/categories", r.categoryController.CreateCategory)
			admin.PUT("/categories/:id", r.categoryController.UpdateCategory)
			admin.DELETE("/categories/:id", r.categoryController.DeleteCategory)

			admin.POST("/products", r.productController.CreateProduct)
			admin.PUT("/products/:id", r.productController.UpdateProduct)
			admin.DELETE("/products/:id", r.productController.DeleteProduct)
			admin.PATCH("/products/:id/stock", r.productController.AdjustStock)
			admin.GET("/products/low-stock", r.productController.GetLowStockProducts)

			admin.POST("/products/:id/categories", r.linkController.AddCategory)
			admin.PUT("/products/:id/categories", r.linkController.ReplaceCategories)
			admin.PUT("/products/:id/categories/primary", r.linkController.SetPrimary)
			admin.DELETE("/products/:id/categories/:categoryId", r.linkController.RemoveCategory)

			admin.GET("/reports", r.reportController.ListReports)
			admin.GET("/reports/users/excel", r.reportController.UsersExcel)
			admin.GET("/reports/products/excel", r.reportController.ProductsExcel)
			admin.GET("/reports/products/pdf", r.reportController.ProductsPDF)
			admin.GET("/reports/categories/pdf", r.reportController.CategoriesPDF)
			admin.GET("/reports/inventory/pdf", r.reportController.InventoryPDF)

			admin.POST("/uploads", r.uploadController.UploadImage)
			admin.POST("/uploads/presigned-url", r.uploadController.PresignUpload)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
