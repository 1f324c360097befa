package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"movie-recommender/internal/usecase"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: marshal response", "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"message":"Internal server error","error_code":"INTERNAL_ERROR"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message, ErrorCode: code})
}

// writeError reports err in the error envelope. Server-side failures are
// logged with their cause; the cause is never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ue := usecase.AsError(err)
	status := ue.Code.Status()
	if status >= http.StatusInternalServerError {
		slog.Error("api: request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"code", ue.Code,
			"reason", ue.Reason,
			"err", ue.Err,
		)
	}
	writeFailure(w, status, string(ue.Code), ue.Reason)
}

func invalidInput(reason string) error {
	return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: reason}
}

// decodeBody reads a JSON object into v. An empty body and malformed JSON
// are both client errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidInput("No data provided")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return invalidInput("Request body too large")
		}
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "Invalid JSON body", Err: err}
	}
	return nil
}
