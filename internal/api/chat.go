package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"movie-recommender/internal/domain"
	"movie-recommender/internal/usecase"
)

type Chat interface {
	SendMessage(ctx context.Context, in usecase.SendMessageInput) (usecase.SendMessageOutput, error)
	ListConversations(ctx context.Context, email string) ([]domain.ConversationSummary, error)
	GetConversation(ctx context.Context, email, id string) (domain.Conversation, error)
}

type summaryView struct {
	domain.ConversationSummary
	ConvoID string `json:"convo_id"`
}

type conversationView struct {
	domain.Conversation
	ConvoID string `json:"convo_id"`
}

type sendMessageRequest struct {
	UserEmail string          `json:"user_email"`
	Message   string          `json:"message"`
	ConvoID   json.RawMessage `json:"convo_id"`
}

// conversationID returns the convo_id string, or "" when it is absent or
// not a JSON string. Such ids start a new conversation.
func (req sendMessageRequest) conversationID() string {
	var id string
	if err := json.Unmarshal(req.ConvoID, &id); err != nil {
		return ""
	}
	return id
}

type sendMessageResponse struct {
	Success  bool          `json:"success"`
	Response string        `json:"response"`
	ConvoID  string        `json:"convo_id"`
	Source   domain.Source `json:"source"`
}

type conversationListResponse struct {
	Success       bool          `json:"success"`
	Conversations []summaryView `json:"conversations"`
	Count         int           `json:"count"`
}

type conversationResponse struct {
	Success      bool             `json:"success"`
	Conversation conversationView `json:"conversation"`
}

type chatHandlers struct {
	chat Chat
}

func (h chatHandlers) send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.chat.SendMessage(r.Context(), usecase.SendMessageInput{
		UserEmail:      req.UserEmail,
		Message:        req.Message,
		ConversationID: req.conversationID(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{
		Success:  true,
		Response: out.Response,
		ConvoID:  out.ConversationID,
		Source:   out.Source,
	})
}

func (h chatHandlers) list(w http.ResponseWriter, r *http.Request) {
	convos, err := h.chat.ListConversations(r.Context(), r.URL.Query().Get("user_email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]summaryView, len(convos))
	for i, c := range convos {
		views[i] = summaryView{ConversationSummary: c, ConvoID: c.ID}
	}
	writeJSON(w, http.StatusOK, conversationListResponse{Success: true, Conversations: views, Count: len(views)})
}

func (h chatHandlers) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.chat.GetConversation(r.Context(), r.URL.Query().Get("user_email"), chi.URLParam(r, "convoID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		Success:      true,
		Conversation: conversationView{Conversation: c, ConvoID: c.ID},
	})
}
