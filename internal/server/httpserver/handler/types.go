package handler

import (
	"time"

	"github.com/yndnr/meshkv/internal/infra/buildinfo"
)

// Response is the standard API response envelope. /metrics and the
// websocket stream do not use it.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// InfoResponse is the response body for GET /v1/info.
type InfoResponse struct {
	Build         buildinfo.Info `json:"build"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Keys          int            `json:"keys"`
	Subscriptions int            `json:"subscriptions"`
	Patterns      int            `json:"patterns"`
	Channels      int            `json:"channels"`
	Clients       *int           `json:"clients,omitempty"`
}

// PublishResponse is the response body for POST /v1/pubsub/publish/{channel}.
type PublishResponse struct {
	Channel   string `json:"channel"`
	Receivers int    `json:"receivers"`
}

// StreamMessage is one websocket frame on /v1/pubsub/ws. Pattern is set
// when the stream subscribed with a glob pattern.
type StreamMessage struct {
	Channel string `json:"channel"`
	Pattern string `json:"pattern,omitempty"`
	Message string `json:"message"`
}
