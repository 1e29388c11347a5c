package models

// Level is a CEFR proficiency tier.
type Level string

const (
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
)

// Levels lists the supported tiers in ascending order.
var Levels = []Level{LevelA2, LevelB1, LevelB2, LevelC1}

// Valid reports whether l is one of the supported tiers.
func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation about an article.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Session is one learning unit: topic, generated article, conversation and
// optional speech feedback. Timestamps are epoch milliseconds.
type Session struct {
	ID           string    `json:"id"`
	Timestamp    int64     `json:"timestamp"`
	Topic        string    `json:"topic"`
	Level        Level     `json:"level"`
	Article      string    `json:"article"`
	ChatMessages []Message `json:"chatMessages"`
	Transcript   *string   `json:"transcript"`
	Feedback     *string   `json:"feedback"`
	Title        *string   `json:"title,omitempty"`
}

// Clone returns a deep copy so callers can't mutate shared message slices.
func (s Session) Clone() Session {
	out := s
	out.ChatMessages = append([]Message(nil), s.ChatMessages...)
	if out.ChatMessages == nil {
		out.ChatMessages = []Message{}
	}
	out.Transcript = cloneString(s.Transcript)
	out.Feedback = cloneString(s.Feedback)
	out.Title = cloneString(s.Title)
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SessionHistory is the serialized shape of the local session list.
type SessionHistory struct {
	Sessions []Session `json:"sessions"`
}
