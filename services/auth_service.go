package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"admissions-api/config"
	"admissions-api/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const adminTokenTTL = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AdminClaims is the JWT payload issued to admin users.
type AdminClaims struct {
	AdminID uint   `json:"admin_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Admin     *models.AdminUser `json:"admin"`
}

type AuthService struct {
	db     *gorm.DB
	secret []byte
}

func NewAuthService(db *gorm.DB, secret string) *AuthService {
	if db == nil {
		db = config.DB
	}
	return &AuthService{db: db, secret: []byte(secret)}
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// Login checks the password and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("JWT_SECRET is not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var admin models.AdminUser
	if err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, Storage("Failed to sign in", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := nowFunc()
	expires := now.Add(adminTokenTTL)
	claims := AdminClaims{
		AdminID: admin.AdminID,
		Email:   admin.Email,
		Role:    admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(admin.AdminID),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("admin_id = ?", admin.AdminID).
		Update("last_login_at", now).Error; err != nil {
		log.Printf("failed to record login for admin %d: %v", admin.AdminID, err)
	}
	return &LoginResult{Token: token, ExpiresAt: expires, Admin: &admin}, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *AuthService) ParseToken(raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.AdminID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ActiveAdmin loads an admin by id, failing when the account is disabled or gone.
func (s *AuthService) ActiveAdmin(ctx context.Context, adminID uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.WithContext(ctx).Where("admin_id = ? AND is_active = ?", adminID, true).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &admin, nil
}

// EnsureAdmin creates the bootstrap admin when no admin with email exists yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	admin := models.AdminUser{Name: name, Email: email, PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("bootstrap admin %s created", email)
	return nil
}

const minAdminPasswordLength = 8

// SetAdmin creates the account or, when the email exists, resets its password and
// role and reactivates it. created reports which happened.
func (s *AuthService) SetAdmin(ctx context.Context, name, email, password, role string) (created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = models.RoleAdmin
	}

	var fields []FieldError
	if err := inputValidator().Var(email, "required,email"); err != nil {
		fields = append(fields, FieldError{Field: "email", Error: "must be a valid email address"})
	}
	if len(password) < minAdminPasswordLength {
		fields = append(fields, FieldError{Field: "password", Error: fmt.Sprintf("must be at least %d characters", minAdminPasswordLength)})
	}
	if role != models.RoleAdmin && role != models.RoleReviewer {
		fields = append(fields, FieldError{Field: "role", Error: "must be admin or reviewer"})
	}
	if len(fields) > 0 {
		return false, Validation("invalid admin account", fields...)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AdminUser
		res := tx.Where("email = ?", email).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if strings.TrimSpace(name) == "" {
				name = "Administrator"
			}
			created = true
			return tx.Create(&models.AdminUser{
				Name: strings.TrimSpace(name), Email: email, PasswordHash: hash, Role: role, IsActive: true,
			}).Error
		}

		updates := map[string]interface{}{
			"password_hash": hash,
			"role":          role,
			"is_active":     true,
		}
		if strings.TrimSpace(name) != "" {
			updates["name"] = strings.TrimSpace(name)
		}
		return tx.Model(&existing).Updates(updates).Error
	})
	if err != nil {
		return false, Storage("Failed to save admin account", err)
	}
	return created, nil
}

// RehashPlaintext hashes every stored password that is not already a bcrypt hash.
// Accounts that fail are logged and skipped.
func (s *AuthService) RehashPlaintext(ctx context.Context) (updated int, err error) {
	var admins []models.AdminUser
	if err := s.db.WithContext(ctx).Find(&admins).Error; err != nil {
		return 0, err
	}
	for _, admin := range admins {
		if strings.HasPrefix(admin.PasswordHash, "$2") {
			continue
		}
		hash, err := HashPassword(admin.PasswordHash)
		if err != nil {
			log.Printf("rehash %s: %v", admin.Email, err)
			continue
		}
		if err := s.db.WithContext(ctx).Model(&admin).Update("password_hash", hash).Error; err != nil {
			log.Printf("rehash %s: %v", admin.Email, err)
			continue
		}
		updated++
	}
	return updated, nil
}
