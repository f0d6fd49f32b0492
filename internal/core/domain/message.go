package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

func ParseSender(raw string) (Sender, error) {
	switch Sender(raw) {
	case SenderUser:
		return SenderUser, nil
	case SenderAssistant:
		return SenderAssistant, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse sender", fmt.Errorf("unknown sender %q", raw))
	}
}

// Message is a single conversation turn. Turns may arrive in any order;
// SortMessages establishes the timestamp order prompt assembly relies on.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sender    Sender    `json:"sender"`
}

func NewMessage(id, content, sender string, timestamp time.Time) (Message, error) {
	parsed, err := ParseSender(sender)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        id,
		Content:   content,
		Timestamp: timestamp,
		Sender:    parsed,
	}, nil
}

// SortMessages orders turns by timestamp, oldest first. The sort is stable so
// turns sharing a timestamp keep their arrival order.
func SortMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// LatestUserMessage returns the newest user turn by timestamp; that turn is the
// question driving retrieval.
func LatestUserMessage(messages []Message) (Message, error) {
	var latest *Message
	for i := range messages {
		if messages[i].Sender != SenderUser {
			continue
		}
		if latest == nil || messages[i].Timestamp.After(latest.Timestamp) {
			latest = &messages[i]
		}
	}
	if latest == nil {
		return Message{}, WrapError(ErrPrompt, "latest user message", errors.New("no user turns"))
	}
	return *latest, nil
}

type ChatInfo struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
}

// DefaultChatName is the placeholder a freshly created conversation carries
// until the namer model produces a title.
const DefaultChatName = "Yeni Sohbet"
