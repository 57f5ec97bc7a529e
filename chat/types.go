package chat

import "strings"

// Message is one chat message.
type Message struct {
	Channel   int64       `json:"channel"`
	ID        string      `json:"id"`
	UserName  string      `json:"user_name"`
	UserID    int64       `json:"user_id"`
	UserRoles []string    `json:"user_roles,omitempty"`
	UserLevel int         `json:"user_level,omitempty"`
	Message   MessageBody `json:"message"`
	// Target is set on whispers.
	Target    string      `json:"target,omitempty"`
}

// MessageBody is the content of a message split into components.
type MessageBody struct {
	Message []Component     `json:"message"`
	Meta    map[string]bool `json:"meta,omitempty"`
}

// Component is one piece of a message: text, an emoticon, a link or a tag.
type Component struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Text string `json:"text"`
}

// Text joins the text of every component.
func (m Message) Text() string {
	var sb strings.Builder
	for _, c := range m.Message.Message {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// User is the payload of join and leave pushes.
type User struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	OriginatingChannel int64  `json:"originatingChannel,omitempty"`
}
