package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Message is the payload the embedding application hands to the client.
// ID correlates a message across client and server logs; Time is the creation
// time in nanoseconds since the epoch.
type Message struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Time int64  `json:"time"`
}

// NewMessage creates a Message from text, stamping it with a fresh id and the
// current time.
func NewMessage(text string) Message {
	return Message{
		ID:   uuid.NewString(),
		Text: text,
		Time: time.Now().UnixNano(),
	}
}

// Ready assigns a notification name to the message, producing the value the
// client orchestrator accepts on its queue.
func (m Message) Ready(name string) ClientReadyMessage {
	return ClientReadyMessage{Name: name, Message: m}
}

// ClientReadyMessage is a Message paired with the notification name used for
// routing on the server side.
type ClientReadyMessage struct {
	Name    string  `json:"name"`
	Message Message `json:"message"`
}

// Notification is the decoded routing unit the server fans out to endpoints.
type Notification struct {
	Name    string  `json:"name"`
	Message Message `json:"message"`
}

// Notification converts the queued message into its routable form.
func (c ClientReadyMessage) Notification() Notification {
	return Notification{Name: c.Name, Message: c.Message}
}
