package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/tiendaropa/catalog-backend/internal/errors"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
	"github.com/tiendaropa/catalog-backend/internal/storage"
)

type UploadController struct {
	storage   storage.Storage
	s3        *storage.S3Storage // nil unless the S3 driver is active
	maxSizeMB int64
}

func NewUploadController(store storage.Storage, s3 *storage.S3Storage, maxSizeMB int64) *UploadController {
	return &UploadController{
		storage:   store,
		s3:        s3,
		maxSizeMB: maxSizeMB,
	}
}

type PresignUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Folder      string `json:"folder"`
}

// UploadImage stores a catalog image sent as multipart form data
// POST /api/v1/admin/uploads (Admin only)
func (ctrl *UploadController) UploadImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "A file field is required")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	maxSize := ctrl.maxSizeMB << 20

	if err := storage.ValidateImageUpload(fileHeader.Size, maxSize, contentType); err != nil {
		log.Warn("Rejected upload", map[string]interface{}{
			"filename":     fileHeader.Filename,
			"size":         fileHeader.Size,
			"content_type": contentType,
		})
		if errors.Is(err, storage.ErrFileTooLarge) {
			apperrors.BadRequest(c, apperrors.UploadFileTooLarge, "File exceeds the maximum allowed size")
			return
		}
		apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "Only image files are allowed (JPEG, PNG, GIF, WEBP)")
		return
	}

	folder := c.DefaultPostForm("folder", "products")

	src, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", err, nil)
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.UploadFailed, "Failed to process the uploaded file")
		return
	}
	defer src.Close()

	key := storage.ObjectKey(folder, fileHeader.Filename)

	result, err := ctrl.storage.Save(c.Request.Context(), key, contentType, src)
	if err != nil {
		log.Error("Failed to store uploaded file", err, map[string]interface{}{
			"key": key,
		})
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.UploadFailed, "Failed to store the uploaded file")
		return
	}

	log.Info("Image uploaded successfully", map[string]interface{}{
		"key":  result.Key,
		"size": fileHeader.Size,
	})

	c.JSON(http.StatusCreated, gin.H{
		"file_url": result.FileURL,
		"key":      result.Key,
	})
}

// PresignUpload generates a presigned PUT URL for direct S3 uploads
// POST /api/v1/admin/uploads/presigned-url (Admin only)
func (ctrl *UploadController) PresignUpload(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if ctrl.s3 == nil {
		apperrors.BadRequest(c, apperrors.UploadFailed, "Presigned uploads require the S3 storage driver")
		return
	}

	var req PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	if !storage.AllowedImageType(req.ContentType) {
		apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "Only image files are allowed (JPEG, PNG, GIF, WEBP)")
		return
	}

	folder := req.Folder
	if folder == "" {
		folder = "products"
	}

	response, err := ctrl.s3.PresignUpload(req.Filename, req.ContentType, folder)
	if err != nil {
		log.Error("Failed to generate presigned URL", err, map[string]interface{}{
			"filename":     req.Filename,
			"content_type": req.ContentType,
			"folder":       folder,
		})
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.UploadFailed, "Failed to generate presigned URL")
		return
	}

	log.Info("Presigned URL generated successfully", map[string]interface{}{
		"filename": req.Filename,
		"key":      response.Key,
	})

	c.JSON(http.StatusOK, gin.H{
		"upload_url": response.UploadURL,
		"file_url":   response.FileURL,
		"key":        response.Key,
	})
}
