package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is the remote row for a Session, owned by exactly one user.
type SessionRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Timestamp  int64     `gorm:"index"`
	Topic      string    `gorm:"type:varchar(200);not null"`
	Level      string    `gorm:"type:varchar(4);not null"`
	Article    string    `gorm:"type:text"`
	Transcript *string   `gorm:"type:text"`
	Feedback   *string   `gorm:"type:text"`
	Title      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Messages   []MessageRecord `gorm:"foreignKey:SessionID;references:ID"`
}

func (SessionRecord) TableName() string {
	return "sessions"
}

// MessageRecord is one chat message row. Position keeps insertion order.
type MessageRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"type:varchar(64);index;not null"`
	Position  int    `gorm:"not null"`
	Role      string `gorm:"type:varchar(16);not null"`
	Content   string `gorm:"type:text"`
	Timestamp int64
}

func (MessageRecord) TableName() string {
	return "messages"
}

// NewSessionRecord maps a session onto its row for the given owner.
// Messages are not attached; they are written separately.
func NewSessionRecord(userID uuid.UUID, s Session) SessionRecord {
	return SessionRecord{
		ID:         s.ID,
		UserID:     userID,
		Timestamp:  s.Timestamp,
		Topic:      s.Topic,
		Level:      string(s.Level),
		Article:    s.Article,
		Transcript: s.Transcript,
		Feedback:   s.Feedback,
		Title:      s.Title,
	}
}

// NewMessageRecords maps chat messages onto rows, numbering them in order.
func NewMessageRecords(sessionID string, msgs []Message) []MessageRecord {
	records := make([]MessageRecord, len(msgs))
	for i, m := range msgs {
		records[i] = MessageRecord{
			SessionID: sessionID,
			Position:  i,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return records
}

// ToSession converts the row and its preloaded messages back to a Session.
func (r SessionRecord) ToSession() Session {
	msgs := make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = Message{
			Role:      Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return Session{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		Topic:        r.Topic,
		Level:        Level(r.Level),
		Article:      r.Article,
		ChatMessages: msgs,
		Transcript:   r.Transcript,
		Feedback:     r.Feedback,
		Title:        r.Title,
	}
}
