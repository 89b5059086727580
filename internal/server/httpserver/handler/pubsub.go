package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/core/pubsub"
)

// MaxPublishBody caps the message size accepted by the publish endpoint.
const MaxPublishBody = 1 << 20

// handlePublish handles POST /v1/pubsub/publish/{channel}. The raw request
// body is the message.
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if channel == "" {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithMessage("channel is required"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPublishBody+1))
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithMessage("read body: %v", err))
		return
	}
	if len(body) > MaxPublishBody {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, domain.ErrInvalidArgument.Code, "message too large", nil)
		return
	}

	n := h.router.Publish(channel, string(body))
	h.writeJSON(w, r, http.StatusOK, PublishResponse{Channel: channel, Receivers: n})
}

// handleStream handles GET /v1/pubsub/ws?channel=...&mode=auto|literal|pattern.
// The connection is upgraded to a websocket that carries one JSON
// StreamMessage per delivery until either side closes it.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	if channel == "" {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithMessage("channel query parameter is required"))
		return
	}
	mode, err := pubsub.ParseMode(q.Get("mode"))
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithMessage("%v", err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := newStream(conn, h.logger)
	pattern := ""
	if mode.Resolve(channel) == pubsub.Pattern {
		pattern = channel
	}
	sub := h.router.Subscribe(channel, mode, func(ch, msg string) {
		s.enqueue(StreamMessage{Channel: ch, Pattern: pattern, Message: msg})
	})
	defer h.router.Remove(sub)

	h.logger.Debug("websocket stream opened", "spec", channel, "mode", sub.Mode.String(), "subscription", sub.ID.String())
	s.run(r.Context())
	h.logger.Debug("websocket stream closed", "subscription", sub.ID.String())
}
