package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single direct message between two users. Image and audio
// attachments are opaque data-URL strings; the server never decodes them.
type Message struct {
	ID         string    `gorm:"primarykey;size:36" json:"id"`
	SenderID   string    `gorm:"size:36;index;not null" json:"senderId"`
	ReceiverID string    `gorm:"size:36;index;not null" json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Audio      string    `json:"audio,omitempty"`
	IsRead     bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Message) TableName() string { return "messages" }

func NewMessage(senderID, receiverID, text, image, audio string) *Message {
	return &Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		Audio:      audio,
	}
}

// Empty reports whether the message carries no content at all.
func (m *Message) Empty() bool {
	return m.Text == "" && m.Image == "" && m.Audio == ""
}
