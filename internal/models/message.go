package models

// Message is one transcript entry as served by the conversation endpoint.
// IDs are unique per conversation and totally ordered.
type Message struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// IsFrom reports whether the message was sent by user.
func (m Message) IsFrom(user string) bool {
	return user != "" && m.Sender == user
}
