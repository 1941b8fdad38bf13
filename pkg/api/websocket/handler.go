package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/internal/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobReader reads job state
type JobReader interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

// Message is a frame sent to the client. Snapshots carry Job, events carry Event.
type Message struct {
	Type  string        `json:"type"`
	Job   *domain.Job   `json:"job,omitempty"`
	Event *domain.Event `json:"event,omitempty"`
}

// MessageTypeSnapshot marks a frame carrying the full job state
const MessageTypeSnapshot = "job.snapshot"

// Handler handles WebSocket connections
type Handler struct {
	jobs     JobReader
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(jobs JobReader, eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandleJobStream handles WebSocket streaming for a specific job
func (h *Handler) HandleJobStream(c *gin.Context) {
	jobID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before the snapshot so no event falls in between
	eventChan := make(chan domain.Event, 16)
	err := h.eventBus.Subscribe(ctx, domain.JobEventsTopic, func(ctx context.Context, event domain.Event) error {
		if event.JobID != jobID {
			return nil
		}
		select {
		case eventChan <- event:
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("job_id", jobID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to subscribe to events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to subscribe to job events"})
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Job not found"})
			return
		}
		h.logger.Error("failed to get job", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get job"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("job_id", jobID),
		zap.String("client", c.ClientIP()))

	// Reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, Message{Type: MessageTypeSnapshot, Job: job}); err != nil {
		return
	}
	if job.Status.IsTerminal() {
		h.close(conn)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if err := h.write(conn, Message{Type: string(event.Type), Event: &event}); err != nil {
				return
			}
			if event.Type != domain.EventTypeJobCompleted && event.Type != domain.EventTypeJobFailed {
				continue
			}

			// The final save may trail the terminal event
			if final, err := h.awaitTerminal(ctx, jobID); err == nil {
				_ = h.write(conn, Message{Type: MessageTypeSnapshot, Job: final})
			}
			h.close(conn)
			return
		}
	}
}

// awaitTerminal polls briefly until the stored job is terminal
func (h *Handler) awaitTerminal(ctx context.Context, jobID string) (*domain.Job, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(2 * time.Second)

	for {
		job, err := h.jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return job, nil
		case <-ticker.C:
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Error("failed to write message", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
