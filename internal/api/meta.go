package api

import "net/http"

const (
	serviceName    = "movie-backend-api"
	serviceVersion = "1.0.0"
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type indexResponse struct {
	Name      string                       `json:"name"`
	Version   string                       `json:"version"`
	Endpoints map[string]map[string]string `json:"endpoints"`
}

var endpoints = map[string]map[string]string{
	"auth": {
		"register": "POST /api/auth/register",
		"login":    "POST /api/auth/login",
		"verify":   "GET /api/auth/verify",
	},
	"movies": {
		"add":         "POST /api/movies/add",
		"not_watched": "GET /api/movies/not-watched?user_email=<email>",
		"watched":     "GET /api/movies/watched?user_email=<email>",
		"get":         "GET /api/movies/<movie_id>?user_email=<email>",
		"rate":        "PUT /api/movies/<movie_id>/rate",
		"delete":      "DELETE /api/movies/<movie_id>?user_email=<email>",
	},
	"chat": {
		"message":       "POST /api/chat/message",
		"conversations": "GET /api/chat/conversations?user_email=<email>",
		"conversation":  "GET /api/chat/conversation/<convo_id>?user_email=<email>",
	},
}

func index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{Name: "Movie Recommendation API", Version: serviceVersion, Endpoints: endpoints})
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: serviceName, Version: serviceVersion})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeFailure(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}
