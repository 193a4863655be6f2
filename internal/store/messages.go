package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/avdeev/chatline/internal/domain"
)

// MessageRepo provides access to message storage.
type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(msg *domain.Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Conversation returns all messages between the two users, oldest first.
func (r *MessageRepo) Conversation(userA, userB string) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := r.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return msgs, nil
}

// MarkRead flips every unread message from senderID to receiverID to read and
// reports how many rows actually changed. The read-receipt event must only
// fire when this count is positive.
func (r *MessageRepo) MarkRead(senderID, receiverID string) (int64, error) {
	result := r.db.Model(&domain.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, receiverID, false).
		Update("is_read", true)
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.RowsAffected, nil
}

// SidebarEntry is one row of the conversation list: the peer, the most
// recent message either way, and how many of their messages are unread.
type SidebarEntry struct {
	User        *domain.User    `json:"user"`
	LastMessage *domain.Message `json:"lastMessage"`
	UnreadCount int64           `json:"unreadCount"`
}

// Sidebar returns every other user with last-message and unread info, most
// recently active conversations first. Users with no conversation yet sort
// last.
func (r *MessageRepo) Sidebar(users []*domain.User, myID string) ([]*SidebarEntry, error) {
	entries := make([]*SidebarEntry, 0, len(users))
	for _, u := range users {
		var last domain.Message
		lastPtr := &last
		err := r.db.
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				myID, u.ID, u.ID, myID).
			Order("created_at DESC").
			First(&last).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to load last message: %w", err)
			}
			lastPtr = nil
		}

		var unread int64
		err = r.db.Model(&domain.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND is_read = ?", u.ID, myID, false).
			Count(&unread).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count unread: %w", err)
		}

		entries = append(entries, &SidebarEntry{User: u, LastMessage: lastPtr, UnreadCount: unread})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return sidebarTime(entries[i]).After(sidebarTime(entries[j]))
	})
	return entries, nil
}

func sidebarTime(e *SidebarEntry) time.Time {
	if e.LastMessage == nil {
		return time.Time{}
	}
	return e.LastMessage.CreatedAt
}
