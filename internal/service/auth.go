package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"task-manager/internal/apperror"
	"task-manager/internal/config"
	"task-manager/internal/repository"
	"task-manager/pkg/logger"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// TokenPair is the response of a successful login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type AuthService struct {
	store      repository.Querier
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(store repository.Querier, secret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		store:      store,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

var errInvalidCredentials = apperror.Unauthenticated("No active account found with the given credentials")

// Login checks the credentials and issues an access and a refresh token.
func (s *AuthService) Login(ctx context.Context, body []byte) (TokenPair, error) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeCredentials(body, &req); err != nil {
		return TokenPair{}, err
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.SecurityLogger.Warn("Login for unknown user", append(logger.Fields(ctx), zap.String("username", req.Username))...)
			return TokenPair{}, errInvalidCredentials
		}
		return TokenPair{}, translate(err, "User")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", append(logger.Fields(ctx), zap.String("username", req.Username))...)
		return TokenPair{}, errInvalidCredentials
	}

	access, err := s.sign(user.ID, string(user.Role), TokenAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user.ID, string(user.Role), TokenRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	logger.AuditLogger.Info("User logged in", append(logger.Fields(ctx), zap.Int64("user_id", user.ID))...)
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, body []byte) (string, error) {
	var req struct {
		Refresh string `json:"refresh" validate:"required"`
	}
	if err := decodeCredentials(body, &req); err != nil {
		return "", err
	}
	claims, err := s.Parse(req.Refresh, TokenRefresh)
	if err != nil {
		return "", err
	}
	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperror.Unauthenticated("User not found")
		}
		return "", translate(err, "User")
	}
	return s.sign(user.ID, string(user.Role), TokenAccess, s.accessTTL)
}

func (s *AuthService) sign(userID int64, role, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperror.Internal("Could not sign token", err)
	}
	return token, nil
}

// Parse validates a token string of the given type and returns its claims.
func (s *AuthService) Parse(raw, typ string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.Unauthenticated("Given token not valid for any token type")
	}
	if claims.Type != typ {
		return nil, apperror.Unauthenticated("Token has wrong type")
	}
	return claims, nil
}

func decodeCredentials(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return apperror.ValidationField(apperror.NonField, "Request body must be a JSON object")
	}
	err := config.Validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.ValidationField(apperror.NonField, err.Error())
	}
	errs := apperror.FieldErrors{}
	for _, fe := range verrs {
		errs.Add(fe.Field(), "This field is required.")
	}
	return apperror.Validation(errs)
}
