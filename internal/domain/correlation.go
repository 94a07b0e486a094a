package domain

import "time"

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type CorrelationOutcome string

const (
	CorrelationPending      CorrelationOutcome = "pending"
	CorrelationDelivered    CorrelationOutcome = "delivered"
	CorrelationDeadLettered CorrelationOutcome = "dead_lettered"
)

// CorrelationRecord deduplicates redelivered requests. Retained for a bounded
// window after the terminal outcome; ExpiresAt must outlive the broker's
// redelivery window.
type CorrelationRecord struct {
	CorrelationID  string
	ApplicationRef string
	Direction      MessageDirection
	Attempts       int
	Outcome        CorrelationOutcome
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}
