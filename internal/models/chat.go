package models

import "time"

type Role string

const (
	RoleCoach  Role = "coach"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleCoach || r == RoleMember
}

// Counterpart is the role on the other side of a one-to-one conversation.
func (r Role) Counterpart() Role {
	switch r {
	case RoleCoach:
		return RoleMember
	case RoleMember:
		return RoleCoach
	default:
		return ""
	}
}

type Peer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Message is immutable once created, except for Read.
// SenderID and ReceiverID are optional on the wire; the sandbox backend always sets them.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId,omitempty"`
	ReceiverID string    `json:"receiverId,omitempty"`
	SenderRole Role      `json:"senderRole"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Counterpart returns the id of the party that is not the viewer.
func (m Message) Counterpart(viewerRole Role) string {
	if m.SenderRole == viewerRole {
		return m.ReceiverID
	}
	return m.SenderID
}

type HistoryResponse struct {
	Messages []Message `json:"messages"`
}
