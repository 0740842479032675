package service

import (
	"errors"

	"github.com/tiendaropa/catalog-backend/internal/app/model"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"github.com/tiendaropa/catalog-backend/pkg/util"
	"gorm.io/gorm"
)

var ErrWrongPassword = errors.New("current password is incorrect")

type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Active    *bool
	Role      *model.UserRole
}

type UserService interface {
	ListUsers() ([]model.User, error)
	GetUserByID(id uint) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	UpdateUser(id uint, input UpdateUserInput) (*model.User, error)
	ChangePassword(id uint, currentPassword, newPassword string) error
	DeleteUser(id uint) error
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) ListUsers() ([]model.User, error) {
	return s.userRepo.FindAll()
}

func (s *userService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetUserByUsername(username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateUser(id uint, input UpdateUserInput) (*model.User, error) {
	logger.Info("Updating user", map[string]interface{}{
		"user_id": id,
	})

	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if input.Email != nil && *input.Email != user.Email {
		existing, err := s.userRepo.FindByEmail(*input.Email)
		if err == nil && existing.ID != id {
			return nil, ErrEmailAlreadyExists
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user.Email = *input.Email
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	if input.Role != nil {
		user.Role = *input.Role
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	logger.Info("User updated", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, nil
}

func (s *userService) ChangePassword(id uint, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !util.VerifyPassword(user.PasswordHash, currentPassword) {
		logger.Warn("Password change rejected: wrong current password", map[string]interface{}{
			"user_id": id,
		})
		return ErrWrongPassword
	}

	hashed, err := util.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashed
	return s.userRepo.Update(user)
}

func (s *userService) DeleteUser(id uint) error {
	logger.Info("Deleting user", map[string]interface{}{
		"user_id": id,
	})

	if _, err := s.userRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return s.userRepo.Delete(id)
}
