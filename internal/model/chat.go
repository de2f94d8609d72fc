package model

import "time"

// Conversation is a two-party chat thread.
//
// PairKey is the two participant IDs sorted and joined. The column is
// UNIQUE, which is what makes get-or-create idempotent.
type Conversation struct {
	ID        string    `json:"id"`
	PairKey   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Participant links a user to a conversation with their read watermark.
type Participant struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	LastReadAt     time.Time `json:"lastReadAt"`
}

// Message is append-only.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationSummary is a row in the inbox list.
type ConversationSummary struct {
	ID          string      `json:"id"`
	Other       UserSummary `json:"other"`
	LastMessage *Message    `json:"lastMessage"`
	UnreadCount int         `json:"unreadCount"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
