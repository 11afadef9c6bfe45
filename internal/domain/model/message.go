package model

import (
	"time"

	"github.com/google/uuid"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// Media is an opaque reference to an already-uploaded attachment.
// Upload itself happens outside this core.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// [MESSAGE] CORE ENTITY REPRESENTING A CONVERSATION ELEMENT
// Created exactly once by the delivery pipeline, then treated as an
// immutable value for fan-out. Only the read flag mutates afterwards.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Content        string     `json:"content"`
	Media          *Media     `json:"media,omitempty"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
