package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"movie-recommender/internal/auth"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/repository"
	"movie-recommender/internal/validation"
)

type RegisterInput struct {
	FName    string `json:"fname" validate:"notblank"`
	LName    string `json:"lname" validate:"notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginOutput struct {
	Token string
	User  domain.User
}

// AccountService registers users and exchanges credentials for tokens.
type AccountService struct {
	users  UserStore
	tokens TokenService
}

func NewAccountService(users UserStore, tokens TokenService) (*AccountService, error) {
	if users == nil {
		return nil, errors.New("usecase: user store must not be nil")
	}
	if tokens == nil {
		return nil, errors.New("usecase: token service must not be nil")
	}
	return &AccountService{users: users, tokens: tokens}, nil
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if verr := validation.Struct(in); verr != nil {
		return newError(ErrorInvalidInput, verr.Reason(), verr)
	}
	if s.users.FindOne(ctx, repository.UserFilter{Email: in.Email}) != nil {
		return newError(ErrorConflict, "Email already exists", nil)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return newError(ErrorInvalidInput, "password is required", err)
	}
	id := s.users.InsertOne(ctx, domain.User{
		FName:    in.FName,
		LName:    in.LName,
		Email:    in.Email,
		Password: hash,
	})
	if id == "" {
		// A concurrent registration may have taken the address in between.
		if s.users.FindOne(ctx, repository.UserFilter{Email: in.Email}) != nil {
			return newError(ErrorConflict, "Email already exists", nil)
		}
		return newError(ErrorStore, "Failed to create user", nil)
	}
	slog.Info("user registered", "email", in.Email, "user_id", id)
	return nil
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if verr := validation.Struct(in); verr != nil {
		return LoginOutput{}, newError(ErrorInvalidInput, verr.Reason(), verr)
	}
	u := s.users.FindOne(ctx, repository.UserFilter{Email: in.Email})
	if u == nil || !auth.VerifyPassword(in.Password, u.Password) {
		return LoginOutput{}, newError(ErrorUnauthorized, "Invalid credentials", nil)
	}
	token, err := s.tokens.Issue(u.Email)
	if err != nil {
		return LoginOutput{}, newError(ErrorInternal, "Failed to issue token", err)
	}
	slog.Info("user logged in", "email", u.Email)
	return LoginOutput{Token: token, User: *u}, nil
}

// Verify returns the email a bearer token was issued for.
func (s *AccountService) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", newError(ErrorUnauthorized, "Token is missing", nil)
	}
	claims, ok := s.tokens.Decode(token)
	if !ok {
		return "", newError(ErrorUnauthorized, "Token is invalid or expired", nil)
	}
	return claims.Email, nil
}
