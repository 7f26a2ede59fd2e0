package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"rpmt/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterInput sind die Felder der Selbstregistrierung.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UserService verwaltet Benutzerkonten.
type UserService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Cost   int // bcrypt-Kosten, 0 = bcrypt.DefaultCost
}

// NewUserService erstellt einen neuen UserService.
func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	return &UserService{DB: db, Logger: logger}
}

// Register legt ein Konto mit der Rolle Faculty an.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.Create(ctx, in.Username, in.Email, in.Password, models.RoleFaculty)
}

// Create legt ein Konto mit beliebiger Rolle an.
func (s *UserService) Create(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	verr := &ValidationError{}
	switch {
	case username == "":
		verr.Add("username", "This field is required.")
	case utf8.RuneCountInString(username) > 128:
		verr.Add("username", "Field cannot be longer than 128 characters.")
	}
	if _, err := mail.ParseAddress(email); err != nil || utf8.RuneCountInString(email) > 64 {
		verr.Add("email", "Invalid email address.")
	}
	switch n := utf8.RuneCountInString(password); {
	case n < 8:
		verr.Add("password", "Password must be at least 8 characters.")
	case n > 64:
		verr.Add("password", "Field cannot be longer than 64 characters.")
	case len(password) > 72:
		// bcrypt verarbeitet höchstens 72 Byte
		verr.Add("password", "Password is too long.")
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		verr.Add("role", "Not a valid choice.")
	}
	if !verr.Empty() {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Username: username, Email: email, Password: string(hash), Role: role}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.duplicateError(ctx, username)
		}
		return nil, dbError("create user", err)
	}
	s.Logger.Info("User created", zap.Uint("user_id", user.ID), zap.String("username", username), zap.String("role", string(role)))
	return user, nil
}

// duplicateError ordnet die verletzte Eindeutigkeit dem Feld zu.
func (s *UserService) duplicateError(ctx context.Context, username string) error {
	var n int64
	s.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&n)
	if n > 0 {
		return NewValidationError("username", "That username is taken.")
	}
	return NewValidationError("email", "That email is already registered.")
}

func (s *UserService) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

// Authenticate prüft Benutzername und Passwort.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, dbError("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get lädt einen Benutzer per ID.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, dbError(fmt.Sprintf("load user %d", id), err)
	}
	return &user, nil
}

// List liefert alle Benutzer nach Benutzername.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, dbError("list users", err)
	}
	return users, nil
}

// DeleteByUsername löscht ein Konto. Besitzt der Benutzer noch Projekte, wird abgelehnt.
func (s *UserService) DeleteByUsername(ctx context.Context, username string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			return dbError(fmt.Sprintf("load user %q", username), err)
		}
		var owned int64
		if err := tx.Model(&models.Project{}).Where("creator_id = ?", user.ID).Count(&owned).Error; err != nil {
			return dbError("count projects", err)
		}
		if owned > 0 {
			return fmt.Errorf("user %q still owns %d projects: %w", username, owned, ErrInUse)
		}
		if err := tx.Delete(&user).Error; err != nil {
			return dbError("delete user", err)
		}
		s.Logger.Info("User deleted", zap.String("username", username))
		return nil
	})
}

// EnsureBootstrapAdmin legt den konfigurierten Admin an, solange es noch keinen Benutzer gibt.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, username, email, password string) error {
	if username == "" || password == "" {
		return nil
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return dbError("count users", err)
	}
	if n > 0 {
		return nil
	}
	_, err := s.Create(ctx, username, email, password, models.RoleAdmin)
	return err
}
