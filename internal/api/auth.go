package api

import (
	"context"
	"net/http"
	"strings"

	"movie-recommender/internal/usecase"
)

type Accounts interface {
	Register(ctx context.Context, in usecase.RegisterInput) error
	Login(ctx context.Context, in usecase.LoginInput) (usecase.LoginOutput, error)
	Verify(token string) (string, error)
}

type userView struct {
	FName string `json:"fname"`
	LName string `json:"lname"`
	Email string `json:"email"`
}

type loginResponse struct {
	Success   bool     `json:"success"`
	UserEmail string   `json:"user_email"`
	Token     string   `json:"token"`
	User      userView `json:"user"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
}

type authHandlers struct {
	accounts Accounts
}

func (h authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var in usecase.RegisterInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.accounts.Register(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Success: true, Message: "User registered successfully"})
}

func (h authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var in usecase.LoginInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		UserEmail: out.User.Email,
		Token:     out.Token,
		User:      userView{FName: out.User.FName, LName: out.User.LName, Email: out.User.Email},
	})
}

func (h authHandlers) verify(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	email, err := h.accounts.Verify(token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Success: true, Email: email})
}

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header. A missing header yields an empty token.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "Invalid token format"}
	}
	return token, nil
}
