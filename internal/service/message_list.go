package service

import (
	"github.com/noah-isme/dispatch-api/internal/models"
)

type messageKey struct {
	level models.MessageLevel
	text  string
}

// MessageList collects user-facing messages for one request. Repeated
// (level, text) pairs increment a counter instead of adding lines.
type MessageList struct {
	items []models.Message
	index map[messageKey]int
}

// NewMessageList constructs an empty list.
func NewMessageList() *MessageList {
	return &MessageList{index: make(map[messageKey]int)}
}

// Add appends a message or bumps the count of an identical one.
func (m *MessageList) Add(level models.MessageLevel, text string) {
	key := messageKey{level: level, text: text}
	if i, ok := m.index[key]; ok {
		m.items[i].Count++
		return
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, models.Message{Level: level, Text: text, Count: 1})
}

func (m *MessageList) Debug(text string)   { m.Add(models.LevelDebug, text) }
func (m *MessageList) Info(text string)    { m.Add(models.LevelInfo, text) }
func (m *MessageList) Success(text string) { m.Add(models.LevelSuccess, text) }
func (m *MessageList) Warning(text string) { m.Add(models.LevelWarning, text) }
func (m *MessageList) Error(text string)   { m.Add(models.LevelError, text) }

// Len returns the number of distinct messages.
func (m *MessageList) Len() int {
	return len(m.items)
}

// HasLevel reports whether any message of level was added.
func (m *MessageList) HasLevel(level models.MessageLevel) bool {
	for _, item := range m.items {
		if item.Level == level {
			return true
		}
	}
	return false
}

// Output returns the messages as shown to the client. Debug entries are
// dropped unless showDebug is set, in which case they are relabelled;
// errors use the "danger" level.
func (m *MessageList) Output(showDebug bool) []models.Message {
	out := make([]models.Message, 0, len(m.items))
	for _, item := range m.items {
		switch item.Level {
		case models.LevelDebug:
			if !showDebug {
				continue
			}
			item.Level = models.LevelSecondary
			item.Text = "DEBUG: " + item.Text
		case models.LevelError:
			item.Level = models.LevelDanger
		}
		out = append(out, item)
	}
	return out
}
