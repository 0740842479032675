package errors

// Error code constants.
// Format: CATEGORY_SPECIFIC_DETAIL
// Frontends map these codes to localized messages.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthUsernameExists     = "AUTH_USERNAME_EXISTS"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthAdminCodeInvalid   = "AUTH_ADMIN_CODE_INVALID"
	AuthAdminCodeLocked    = "AUTH_ADMIN_CODE_LOCKED"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzAccessDenied = "AUTHZ_ACCESS_DENIED"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"
	ValidationTooShort      = "VALIDATION_TOO_SHORT"
	ValidationTooLong       = "VALIDATION_TOO_LONG"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Categories (CATEGORY_) ====================
	CategoryNotFound     = "CATEGORY_NOT_FOUND"
	CategoryNameExists   = "CATEGORY_NAME_EXISTS"
	CategoryInactive     = "CATEGORY_INACTIVE"
	CategoryHasProducts  = "CATEGORY_HAS_PRODUCTS"
	CategoryNotLinked    = "CATEGORY_NOT_LINKED"
	CategoryAlreadySet   = "CATEGORY_ALREADY_LINKED"
	CategoryPrimaryFixed = "CATEGORY_PRIMARY_REQUIRED"

	// ==================== Products (PRODUCT_) ====================
	ProductNotFound     = "PRODUCT_NOT_FOUND"
	ProductInvalidPrice = "PRODUCT_INVALID_PRICE"
	ProductInvalidStock = "PRODUCT_INVALID_STOCK"
	ProductOutOfStock   = "PRODUCT_OUT_OF_STOCK"
	ProductNameTooShort = "PRODUCT_NAME_TOO_SHORT"

	// ==================== Uploads (UPLOAD_) ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"
	UploadFailed          = "UPLOAD_FAILED"

	// ==================== Reports (REPORT_) ====================
	ReportGenerationFailed = "REPORT_GENERATION_FAILED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
