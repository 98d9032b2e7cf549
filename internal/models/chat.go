package models

import "time"

// Thread status values.
const (
	ThreadStatusOpen   = "open"
	ThreadStatusClosed = "closed"
)

// Message types.
const MessageTypeText = "text"

// RedactedMessageText replaces the body of a redacted message.
const RedactedMessageText = "[Message deleted]"

// Thread is a support conversation. The LastMessage columns are a denormalized
// preview of the newest accepted message.
type Thread struct {
	ID                string              `gorm:"primaryKey;size:36" json:"id"`
	Status            string              `gorm:"size:16;index;not null;default:open" json:"status"`
	CreatedAt         int64               `gorm:"autoCreateTime:milli;index" json:"created_at"`
	LastMessageText   string              `gorm:"type:text" json:"last_message_text"`
	LastMessageSender string              `gorm:"size:64" json:"last_message_sender"`
	LastMessageAt     int64               `gorm:"index" json:"last_message_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Participants      []ThreadParticipant `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"participants"`
}

// ThreadParticipant records membership of a user in a thread.
type ThreadParticipant struct {
	ThreadID string    `gorm:"primaryKey;size:36" json:"thread_id"`
	UserID   string    `gorm:"primaryKey;size:64;index" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Message is a single chat entry. Timestamp is the sender's wall clock in
// milliseconds; ID is store assigned and breaks timestamp ties.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  string    `gorm:"size:36;index:idx_messages_thread_ts,priority:1;not null" json:"thread_id"`
	SenderID  string    `gorm:"size:64;index;not null" json:"sender_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Timestamp int64     `gorm:"index:idx_messages_thread_ts,priority:2;not null" json:"timestamp"`
	Deleted   bool      `gorm:"not null;default:false" json:"deleted"`
	Type      string    `gorm:"size:16;not null;default:text" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// ParticipantIDs returns the user ids of the thread members.
func (t Thread) ParticipantIDs() []string {
	ids := make([]string, 0, len(t.Participants))
	for _, participant := range t.Participants {
		ids = append(ids, participant.UserID)
	}
	return ids
}
