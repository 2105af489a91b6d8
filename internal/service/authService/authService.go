package authService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/data/repository"
	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/internal/service"
	"github.com/stockfolio/backend/utils"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

type Repository interface {
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	InsertUser(ctx context.Context, user model.User) (model.User, error)
}

type AuthService struct {
	cfg  *config.Config
	repo Repository
}

func New(cfg *config.Config, repo Repository) *AuthService {
	return &AuthService{cfg: cfg, repo: repo}
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signup creates the user with a bcrypt hash of the password and returns it
// with a signed token. A taken username is ErrAlreadyExists and writes nothing.
func (s *AuthService) Signup(ctx context.Context, username, password string) (model.AuthResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.Signup"

	slog.Debug("Signup start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Signup finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return model.AuthResult{}, service.ErrAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		slog.Error("got error from repo.GetUserByUsername", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.AuthResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		slog.Error("got error from bcrypt.GenerateFromPassword", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.AuthResult{}, err
	}

	user := model.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: string(hash),
	}

	created, err := s.repo.InsertUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) { // lost the race on the unique index
			return model.AuthResult{}, service.ErrAlreadyExists
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.AuthResult{}, err
	}

	token, err := s.signToken(created)
	if err != nil {
		slog.Error("can't sign token", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.AuthResult{}, err
	}

	return model.AuthResult{Result: created, Token: token}, nil
}

// Signin returns ErrNotFound for an unknown username and
// ErrInvalidCredentials when the hash comparison fails.
func (s *AuthService) Signin(ctx context.Context, username, password string) (model.AuthResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.Signin"

	slog.Debug("Signin start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Signin finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthResult{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetUserByUsername", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return model.AuthResult{}, service.ErrInvalidCredentials
	}

	token, err := s.signToken(user)
	if err != nil {
		slog.Error("can't sign token", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.AuthResult{}, err
	}

	return model.AuthResult{Result: user, Token: token}, nil
}

func (s *AuthService) signToken(user model.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Auth.TokenTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Auth.JWTSecret))
}

// VerifyToken checks signature and expiry and returns the embedded claims.
func (s *AuthService) VerifyToken(tokenStr string) (model.TokenClaims, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return model.TokenClaims{}, service.ErrInvalidCredentials
	}

	return model.TokenClaims{Username: claims.Username, UserID: claims.Subject}, nil
}
