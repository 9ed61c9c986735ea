package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// managedRoles are the roles visible through user management. Admin
// accounts exist but are never listed, changed or removed there.
var managedRoles = []string{models.RoleManager, models.RoleStaff}

// CreateUserRequest DTO
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=manager staff"`
}

// UpdateUserRequest DTO. Absent fields are left unchanged; an empty
// password keeps the current one.
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Password string  `json:"password" binding:"omitempty,min=6"`
	Role     *string `json:"role" binding:"omitempty,oneof=manager staff"`
}

type UserService interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

type userService struct {
	userRepo repositories.UserRepository
	db       repositories.SQLExecutor
}

// NewUserService creates a new instance of UserService.
func NewUserService(userRepo repositories.UserRepository, db repositories.SQLExecutor) UserService {
	return &userService{userRepo: userRepo, db: db}
}

func isManagedRole(role string) bool {
	for _, r := range managedRoles {
		if r == role {
			return true
		}
	}
	return false
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func mapUserWriteError(err error, action string) error {
	if errors.Is(err, repositories.ErrDuplicateKey) && strings.Contains(err.Error(), repositories.ConstraintUsersEmail) {
		return ErrEmailExists
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("failed to %s user: %w", action, err)
}

func (s *userService) GetUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.GetUsers(ctx, managedRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUserByID returns a manager or staff account.
func (s *userService) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if !isManagedRole(user.Role) {
		return nil, ErrUserNotFound
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if !isManagedRole(req.Role) {
		return nil, NewFieldError("role", "must be one of: manager, staff")
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
	}
	if _, err := s.userRepo.CreateUser(ctx, s.db, user); err != nil {
		return nil, mapUserWriteError(err, "create")
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) (*models.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if !isManagedRole(user.Role) {
		return nil, ErrUserNotFound
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
	}
	if req.Role != nil {
		if !isManagedRole(*req.Role) {
			return nil, NewFieldError("role", "must be one of: manager, staff")
		}
		user.Role = *req.Role
	}
	if req.Password != "" {
		if user.PasswordHash, err = hashPassword(req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.UpdateUser(ctx, s.db, user); err != nil {
		return nil, mapUserWriteError(err, "update")
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.DeleteUser(ctx, s.db, userID); err != nil {
		return mapUserWriteError(err, "delete")
	}
	return nil
}
