package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type candidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	AttachUser(ctx context.Context, candidateID, userID string) error
}

// AccountConfig tunes credential provisioning and token issuance.
type AccountConfig struct {
	JWTSecret          string
	TokenExpiry        time.Duration
	TempPasswordLength int
}

// LoginRequest is the staff/candidate login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      models.UserRole `json:"role"`
}

// AccountService provisions candidate credentials and authenticates users.
// Provisioning is the collaborator call the call-list build triggers for any
// newly summoned candidate without a login.
type AccountService struct {
	users      userStore
	candidates candidateStore
	validator  *validator.Validate
	logger     *zap.Logger
	config     AccountConfig
}

// NewAccountService constructs AccountService.
func NewAccountService(users userStore, candidates candidateStore, validate *validator.Validate, logger *zap.Logger, config AccountConfig) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 24 * time.Hour
	}
	if config.TempPasswordLength < 8 {
		config.TempPasswordLength = 12
	}
	return &AccountService{users: users, candidates: candidates, validator: validate, logger: logger, config: config}
}

// EnsureAccount guarantees the candidate has a login credential, creating one
// with a temporary password when absent. Idempotent.
func (s *AccountService) EnsureAccount(ctx context.Context, candidate *models.Candidate) error {
	if candidate.UserID != nil && *candidate.UserID != "" {
		return nil
	}
	if existing, err := s.users.FindByEmail(ctx, candidate.Email); err == nil {
		return s.attach(ctx, candidate, existing.ID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up credential")
	}

	tempPassword, err := s.generateTempPassword()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        candidate.Email,
		PasswordHash: string(hash),
		FullName:     candidate.Name,
		Role:         models.RoleCandidate,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create credential")
	}
	s.logger.Info("candidate credential provisioned",
		zap.String("candidate_id", candidate.ID),
		zap.String("user_id", user.ID),
	)
	return s.attach(ctx, candidate, user.ID)
}

func (s *AccountService) attach(ctx context.Context, candidate *models.Candidate, userID string) error {
	if err := s.candidates.AttachUser(ctx, candidate.ID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach credential")
	}
	candidate.UserID = &userID
	return nil
}

// Login authenticates a user and issues a JWT.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	expiresAt := time.Now().UTC().Add(s.config.TokenExpiry)
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.FullName,
		"role":  string(user.Role),
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, Role: user.Role}, nil
}

// ValidateToken parses and verifies an access token, returning the identity
// it carries.
func (s *AccountService) ValidateToken(token string) (*models.JWTClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	out := &models.JWTClaims{}
	if sub, ok := claims["sub"].(string); ok {
		out.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		out.FullName = name
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = models.UserRole(role)
	}
	if out.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return out, nil
}

func (s *AccountService) generateTempPassword() (string, error) {
	buf := make([]byte, s.config.TempPasswordLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:s.config.TempPasswordLength], nil
}
