package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quizgenius-service/internal/domain"
)

// UserStore persists student accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	FindUserByUsername(ctx context.Context, username string) (domain.User, error)
}

// TokenIssuer signs access tokens for authenticated principals.
type TokenIssuer interface {
	Issue(principal domain.Principal) (string, error)
}

// Credentials is the login/register payload.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role,omitempty"`
}

// Token is returned on successful login or registration.
type Token struct {
	Token    string      `json:"token"`
	Role     domain.Role `json:"role"`
	Username string      `json:"username,omitempty"`
}

// AuthService handles student accounts and the single configured admin.
type AuthService struct {
	users     UserStore
	issuer    TokenIssuer
	adminHash []byte
	validate  *validator.Validate
	now       func() time.Time
}

func NewAuthService(users UserStore, issuer TokenIssuer, adminPasswordHash string) *AuthService {
	return &AuthService{
		users:     users,
		issuer:    issuer,
		adminHash: []byte(adminPasswordHash),
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Register creates a student account and signs the student in.
func (s *AuthService) Register(ctx context.Context, creds Credentials) (Token, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.validate.Struct(creds); err != nil {
		return Token{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return Token{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     creds.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return Token{}, err
	}
	return s.issue(domain.Principal{Role: domain.RoleStudent, UserID: user.ID, Username: user.Username})
}

// Login signs in the admin (role "admin") or a registered student.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (Token, error) {
	if domain.Role(creds.Role) == domain.RoleAdmin {
		if len(s.adminHash) == 0 || bcrypt.CompareHashAndPassword(s.adminHash, []byte(creds.Password)) != nil {
			return Token{}, domain.ErrInvalidCredentials
		}
		return s.issue(domain.Principal{Role: domain.RoleAdmin, Username: "admin"})
	}

	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		return Token{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Token{}, domain.ErrInvalidCredentials
		}
		return Token{}, fmt.Errorf("compare password: %w", err)
	}
	return s.issue(domain.Principal{Role: domain.RoleStudent, UserID: user.ID, Username: user.Username})
}

func (s *AuthService) issue(p domain.Principal) (Token, error) {
	signed, err := s.issuer.Issue(p)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, Role: p.Role, Username: p.Username}, nil
}
