package service

import (
	"context"
	"errors"
	"time"

	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/pkg/attempts"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"github.com/tiendaropa/catalog-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserInactive          = errors.New("user account is disabled")
	ErrInvalidAdminCode      = errors.New("invalid admin registration code")
	ErrAdminCodeLocked       = errors.New("too many failed admin code attempts")
)

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	// AdminCode, when set, is checked against the configured registration
	// codes; a match grants the admin role.
	AdminCode string
	// ClientIP keys the failed-attempt lockout for admin codes.
	ClientIP string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*model.User, *util.TokenPair, error)
	Login(username, password string) (*model.User, *util.TokenPair, error)
	RefreshTokens(refreshToken string) (*util.TokenPair, error)
	GetUserByID(id uint) (*model.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	attemptStore  attempts.Store
	adminCodes    []string
	maxAttempts   int
	lockoutWindow time.Duration
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	attemptStore attempts.Store,
	adminCodes []string,
	maxAttempts int,
	lockoutWindow time.Duration,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		attemptStore:  attemptStore,
		adminCodes:    adminCodes,
		maxAttempts:   maxAttempts,
		lockoutWindow: lockoutWindow,
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*model.User, *util.TokenPair, error) {
	logger.Info("Attempting user registration", map[string]interface{}{
		"username": input.Username,
		"email":    input.Email,
	})

	role := model.RoleUser
	if input.AdminCode != "" {
		grantedRole, err := s.checkAdminCode(ctx, input.AdminCode, input.ClientIP)
		if err != nil {
			return nil, nil, err
		}
		role = grantedRole
	}

	existing, err := s.userRepo.FindByUsername(input.Username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing username", err, map[string]interface{}{
			"username": input.Username,
		})
		return nil, nil, err
	}
	if existing != nil {
		logger.Warn("Registration failed: username already exists", map[string]interface{}{
			"username": input.Username,
		})
		return nil, nil, ErrUsernameAlreadyExists
	}

	existing, err = s.userRepo.FindByEmail(input.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing email", err, map[string]interface{}{
			"email": input.Email,
		})
		return nil, nil, err
	}
	if existing != nil {
		logger.Warn("Registration failed: email already exists", map[string]interface{}{
			"email": input.Email,
		})
		return nil, nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := util.HashPassword(input.Password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"username": input.Username,
		})
		return nil, nil, err
	}

	user := &model.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		Active:       true,
	}

	if err := s.userRepo.Create(user); err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"username": input.Username,
		})
		return nil, nil, err
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	})

	return user, tokens, nil
}

// checkAdminCode validates the given code, tracking failures per client IP.
// After maxAttempts failures within the lockout window the client is locked
// out even if it later presents a valid code.
func (s *authService) checkAdminCode(ctx context.Context, code, clientIP string) (model.UserRole, error) {
	count, err := s.attemptStore.Count(ctx, clientIP)
	if err != nil {
		logger.Error("Failed to read admin code attempts", err, map[string]interface{}{
			"client_ip": clientIP,
		})
		return "", err
	}
	if count >= s.maxAttempts {
		logger.Warn("Admin code locked out", map[string]interface{}{
			"client_ip": clientIP,
			"attempts":  count,
		})
		return "", ErrAdminCodeLocked
	}

	for _, valid := range s.adminCodes {
		if code == valid {
			if err := s.attemptStore.Clear(ctx, clientIP); err != nil {
				logger.Warn("Failed to clear admin code attempts", map[string]interface{}{
					"client_ip": clientIP,
				})
			}
			return model.RoleAdmin, nil
		}
	}

	attemptCount, err := s.attemptStore.Record(ctx, clientIP, s.lockoutWindow)
	if err != nil {
		logger.Error("Failed to record admin code attempt", err, map[string]interface{}{
			"client_ip": clientIP,
		})
		return "", err
	}

	logger.Warn("Invalid admin registration code", map[string]interface{}{
		"client_ip": clientIP,
		"attempts":  attemptCount,
	})
	if attemptCount >= s.maxAttempts {
		return "", ErrAdminCodeLocked
	}
	return "", ErrInvalidAdminCode
}

func (s *authService) Login(username, password string) (*model.User, *util.TokenPair, error) {
	logger.Info("Login attempt", map[string]interface{}{
		"username": username,
	})

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"username": username,
			})
			return nil, nil, ErrInvalidCredentials
		}
		logger.Error("Failed to find user", err, map[string]interface{}{
			"username": username,
		})
		return nil, nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: wrong password", map[string]interface{}{
			"username": username,
		})
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Active {
		logger.Warn("Login failed: account disabled", map[string]interface{}{
			"username": username,
		})
		return nil, nil, ErrUserInactive
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("Login successful", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return user, tokens, nil
}

func (s *authService) RefreshTokens(refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	return s.generateTokens(user)
}

func (s *authService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) generateTokens(user *model.User) (*util.TokenPair, error) {
	return util.GenerateTokenPair(
		user.ID,
		user.Username,
		user.Email,
		string(user.Role),
		s.jwtSecret,
		s.accessExpiry,
		s.refreshExpiry,
	)
}
