package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"movie-recommender/internal/domain"
	"movie-recommender/internal/repository"
	"movie-recommender/internal/validation"
)

type RecommendationSource interface {
	Recommend(ctx context.Context, in RecommendInput) (string, error)
}

type SendMessageInput struct {
	UserEmail      string `json:"user_email" validate:"notblank"`
	Message        string `json:"message" validate:"notblank"`
	ConversationID string `json:"convo_id"`
}

type SendMessageOutput struct {
	Response       string
	ConversationID string
	Source         domain.Source
}

// ChatService keeps one append-only message log per conversation and
// answers every message with a recommendation.
type ChatService struct {
	convos   ConversationStore
	rec      RecommendationSource
	onSource func(domain.Source)
}

// NewChatService builds the manager. With a nil recommender every reply is
// the mock fallback. onSource may be nil.
func NewChatService(convos ConversationStore, rec RecommendationSource, onSource func(domain.Source)) (*ChatService, error) {
	if convos == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	return &ChatService{convos: convos, rec: rec, onSource: onSource}, nil
}

// SendMessage records the user's message and the model's reply. An unknown
// or malformed conversation id starts a new conversation.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (SendMessageOutput, error) {
	in.UserEmail = strings.TrimSpace(in.UserEmail)
	if verr := validation.Struct(in); verr != nil {
		return SendMessageOutput{}, newError(ErrorInvalidInput, verr.Reason(), verr)
	}

	convoID := s.existing(ctx, in.UserEmail, strings.TrimSpace(in.ConversationID))
	reply, source := s.reply(ctx, in.Message, in.UserEmail, convoID)

	userMsg := domain.Message{Role: domain.RoleUser, Content: in.Message, Timestamp: now()}
	modelMsg := domain.Message{Role: domain.RoleModel, Content: reply, Timestamp: now(), Source: source}

	if convoID != "" && !s.convos.AppendExchange(ctx, convoID, in.UserEmail, now(), userMsg, modelMsg) {
		slog.Warn("append to conversation failed, starting a new one", "convo_id", convoID, "email", in.UserEmail)
		convoID = ""
	}
	if convoID == "" {
		ts := now()
		convoID = s.convos.InsertOne(ctx, domain.Conversation{
			UserEmail: in.UserEmail,
			Messages:  []domain.Message{userMsg, modelMsg},
			CreatedAt: ts,
			UpdatedAt: ts,
		})
		if convoID == "" {
			return SendMessageOutput{}, newError(ErrorStore, "Failed to save conversation", nil)
		}
	}

	if s.onSource != nil {
		s.onSource(source)
	}
	slog.Info("chat message processed", "email", in.UserEmail, "convo_id", convoID, "source", source)
	return SendMessageOutput{Response: reply, ConversationID: convoID, Source: source}, nil
}

func (s *ChatService) existing(ctx context.Context, email, id string) string {
	if id == "" || !repository.IsValidID(id) {
		return ""
	}
	if s.convos.FindOne(ctx, repository.ConversationFilter{ID: id, UserEmail: email}) == nil {
		return ""
	}
	return id
}

func (s *ChatService) reply(ctx context.Context, message, email, convoID string) (string, domain.Source) {
	if s.rec == nil {
		return mockReply(message), domain.SourceMock
	}
	text, err := s.rec.Recommend(ctx, RecommendInput{Query: message, UserEmail: email, ConversationID: convoID})
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Warn("recommendation failed, using fallback reply", "err", err)
		return mockReply(message), domain.SourceMock
	}
	return text, domain.SourceAI
}

// ListConversations returns the user's conversations in creation order,
// without messages.
func (s *ChatService) ListConversations(ctx context.Context, email string) ([]domain.ConversationSummary, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	convos := s.convos.FindByUser(ctx, email)
	out := make([]domain.ConversationSummary, 0, len(convos))
	for _, c := range convos {
		out = append(out, c.Summary())
	}
	return out, nil
}

func (s *ChatService) GetConversation(ctx context.Context, email, id string) (domain.Conversation, error) {
	email, err := requireEmail(email)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !repository.IsValidID(id) {
		return domain.Conversation{}, newError(ErrorInvalidID, "Invalid conversation ID format", nil)
	}
	c := s.convos.FindOne(ctx, repository.ConversationFilter{ID: id, UserEmail: email})
	if c == nil {
		return domain.Conversation{}, newError(ErrorNotFound, "Conversation not found", nil)
	}
	if c.Messages == nil {
		c.Messages = []domain.Message{}
	}
	return *c, nil
}
