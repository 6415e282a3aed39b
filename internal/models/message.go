package models

// MessageLevel is the severity of a user-facing message.
type MessageLevel string

const (
	LevelDebug     MessageLevel = "debug"
	LevelInfo      MessageLevel = "info"
	LevelSuccess   MessageLevel = "success"
	LevelWarning   MessageLevel = "warning"
	LevelError     MessageLevel = "error"
	LevelSecondary MessageLevel = "secondary"
	LevelDanger    MessageLevel = "danger"
)

// Message is one deduplicated entry of a message list.
type Message struct {
	Level    MessageLevel `json:"level"`
	Text     string       `json:"message"`
	Count    int          `json:"count"`
	Rendered string       `json:"rendered,omitempty"`
}
