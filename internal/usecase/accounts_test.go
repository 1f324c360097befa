package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"movie-recommender/internal/auth"
	"movie-recommender/internal/repository"
)

func newAccounts(t *testing.T) (*AccountService, *repository.Store) {
	t.Helper()
	store := newStore(t)
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	svc, err := NewAccountService(store.Users, tokens)
	require.NoError(t, err)
	return svc, store
}

func john() RegisterInput {
	return RegisterInput{FName: "John", LName: "Doe", Email: "john@example.com", Password: "password123"}
}

func TestNewAccountService_ValidatesDependencies(t *testing.T) {
	_, err := NewAccountService(nil, nil)
	require.Error(t, err)
	_, err = NewAccountService(newStore(t).Users, nil)
	require.Error(t, err)
}

func TestRegister_ThenDuplicate(t *testing.T) {
	svc, store := newAccounts(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, john()))
	u := store.Users.FindOne(ctx, repository.UserFilter{Email: "john@example.com"})
	require.NotNil(t, u)
	require.NotEqual(t, "password123", u.Password)
	require.True(t, auth.VerifyPassword("password123", u.Password))

	err := svc.Register(ctx, john())
	ue := requireCode(t, err, ErrorConflict)
	require.Equal(t, "Email already exists", ue.Reason)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		reason string
	}{
		{name: "blank first name", mutate: func(in *RegisterInput) { in.FName = "  " }, reason: "fname is required"},
		{name: "missing last name", mutate: func(in *RegisterInput) { in.LName = "" }, reason: "lname is required"},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "not-an-email" }, reason: "email must be a valid email address"},
		{name: "short password", mutate: func(in *RegisterInput) { in.Password = "12345" }, reason: "password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAccounts(t)
			in := john()
			tt.mutate(&in)
			ue := requireCode(t, svc.Register(context.Background(), in), ErrorInvalidInput)
			require.Equal(t, tt.reason, ue.Reason)
		})
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	tokens, err := auth.NewTokenIssuer("s", time.Hour)
	require.NoError(t, err)
	svc, err := NewAccountService(failingUsers{}, tokens)
	require.NoError(t, err)

	requireCode(t, svc.Register(context.Background(), john()), ErrorStore)
}

func TestLogin(t *testing.T) {
	svc, _ := newAccounts(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, john()))

	out, err := svc.Login(ctx, LoginInput{Email: " john@example.com ", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	require.Equal(t, "John", out.User.FName)
	require.Equal(t, "john@example.com", out.User.Email)

	email, err := svc.Verify(out.Token)
	require.NoError(t, err)
	require.Equal(t, "john@example.com", email)
}

func TestLogin_Failures(t *testing.T) {
	svc, _ := newAccounts(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, john()))

	_, err := svc.Login(ctx, LoginInput{Email: "john@example.com", Password: "wrong-password"})
	ue := requireCode(t, err, ErrorUnauthorized)
	require.Equal(t, "Invalid credentials", ue.Reason)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
	requireCode(t, err, ErrorUnauthorized)

	_, err = svc.Login(ctx, LoginInput{Email: "john@example.com"})
	requireCode(t, err, ErrorInvalidInput)
}

func TestVerify_Rejects(t *testing.T) {
	svc, _ := newAccounts(t)

	ue := requireCode(t, func() error { _, err := svc.Verify(""); return err }(), ErrorUnauthorized)
	require.Equal(t, "Token is missing", ue.Reason)

	other, err := auth.NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("john@example.com")
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	ue = requireCode(t, err, ErrorUnauthorized)
	require.Equal(t, "Token is invalid or expired", ue.Reason)
}
