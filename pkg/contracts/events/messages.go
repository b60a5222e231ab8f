// Package events contains the message contract for the live dashboard
// WebSocket channel.
package events

import (
	"time"

	"tillpulse/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Client to server: change the active filter and get a fresh report
	MessageTypeFilter MessageType = "filter"

	// Server to client
	MessageTypeHello  MessageType = "hello"
	MessageTypeReport MessageType = "report"
	MessageTypeError  MessageType = "error"
)

// Message is the envelope for every frame on the live channel
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// FilterRequest is the payload of a client filter message
type FilterRequest struct {
	Filter domain.Filter `json:"filter"`
	TopN   int           `json:"top,omitempty"`
}

// ErrorPayload is the payload of a server error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage builds an envelope stamped with the current time
func NewMessage(t MessageType, traceID string, data interface{}) Message {
	return Message{
		Type:      t,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Data:      data,
	}
}
