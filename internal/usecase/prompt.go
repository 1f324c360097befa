package usecase

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"movie-recommender/internal/domain"
)

const noPreviousConversation = "no previous conversations"

type promptMessage struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

func buildRecommendationPrompt(query, history string, hits []domain.MovieHit) string {
	return strings.Join([]string{
		"you are a movie recommendation assistant. Give me a movie recommendation that fits this query: " + query,
		". This is all of the previous correspondence with the user: " + history,
		". This is the context, containing some descriptions of movies. You do not have to limit your responses to the provided context: " + serializeHits(hits),
		". Only list one movie. after your recommendation, list name, runtime (in minutes) and description.",
		". Format your response as follows:",
		"Movie Name: <name>",
		"Runtime: <runtime> minutes",
		"Description: <description>",
		"",
	}, "\n")
}

// serializeHistory renders prior turns as a JSON array of role/content
// pairs. An empty conversation renders as "[]".
func serializeHistory(msgs []domain.Message) string {
	out := make([]promptMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, promptMessage{Role: m.Role, Content: m.Content})
	}
	return mustJSON(out)
}

func serializeHits(hits []domain.MovieHit) string {
	if hits == nil {
		hits = []domain.MovieHit{}
	}
	return mustJSON(hits)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only plain strings are marshalled here.
		panic(fmt.Sprintf("usecase: marshal prompt section: %v", err))
	}
	return string(b)
}

func mockReply(message string) string {
	return fmt.Sprintf("I'd recommend checking out some action movies based on your interest in '%s'", message)
}
