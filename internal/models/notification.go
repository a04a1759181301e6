package models

import "time"

type NotificationType string

const (
	NotificationChat              NotificationType = "chat"
	NotificationClassRegistration NotificationType = "class_registration"
	NotificationWorkoutAssigned   NotificationType = "workout_assigned"
	NotificationChatAggregated    NotificationType = "chat_aggregated"
)

// RawNotification is read-only on the client except for delete and mark-all-read.
// An empty SenderName means the backend did not provide one.
type RawNotification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	RelatedID  string           `json:"relatedId"`
	CreatedAt  time.Time        `json:"createdAt"`
	SenderName string           `json:"senderName,omitempty"`
	SenderRole Role             `json:"senderRole,omitempty"`
}

// DisplayNotification is what the header renders. Entries with Type
// NotificationChatAggregated are derived on every pass and never stored.
type DisplayNotification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Count      int              `json:"count,omitempty"`
	Message    string           `json:"message"`
	RelatedID  string           `json:"relatedId"`
	CreatedAt  time.Time        `json:"createdAt"`
	SenderName string           `json:"senderName,omitempty"`
	SenderRole Role             `json:"senderRole,omitempty"`
}

type NotificationsResponse struct {
	Notifications []RawNotification `json:"notifications"`
}
