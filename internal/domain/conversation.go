package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Source tags model messages with how the reply was produced.
type Source string

const (
	SourceAI   Source = "ai"
	SourceMock Source = "mock"
)

// Message is a single conversation turn. Inside a Conversation it has no
// identity beyond its position; ID and ConversationID are only set for
// documents in the standalone messages collection.
type Message struct {
	ID             string    `bson:"_id,omitempty" dynamodbav:"_id,omitempty" json:"_id,omitempty"`
	Role           Role      `bson:"role" dynamodbav:"role" json:"role"`
	Content        string    `bson:"content" dynamodbav:"content" json:"content"`
	Timestamp      time.Time `bson:"timestamp" dynamodbav:"timestamp" json:"timestamp"`
	Source         Source    `bson:"source,omitempty" dynamodbav:"source,omitempty" json:"source,omitempty"`
	ConversationID string    `bson:"convo_id,omitempty" dynamodbav:"convo_id,omitempty" json:"convo_id,omitempty"`
}

// Conversation is an append-only message log owned by one user.
type Conversation struct {
	ID        string    `bson:"_id,omitempty" dynamodbav:"_id,omitempty" json:"_id,omitempty"`
	UserEmail string    `bson:"user_email" dynamodbav:"user_email" json:"user_email"`
	Messages  []Message `bson:"messages" dynamodbav:"messages" json:"messages"`
	CreatedAt time.Time `bson:"created_at" dynamodbav:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" dynamodbav:"updated_at" json:"updated_at"`
}

// ConversationSummary is the list view of a conversation, without messages.
type ConversationSummary struct {
	ID        string    `json:"_id"`
	UserEmail string    `json:"user_email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary drops the message bodies.
func (c Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:        c.ID,
		UserEmail: c.UserEmail,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
