package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/middleware"
	"github.com/stemsi/litera-backend/internal/reading"
	"github.com/stemsi/litera-backend/internal/service"
	ws "github.com/stemsi/litera-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket reading session stream.
type WSHandler struct {
	studentService *service.StudentService
	readingService *service.ReadingService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(studentService *service.StudentService, readingService *service.ReadingService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		studentService: studentService,
		readingService: readingService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ReadingStream godoc
// WS /ws/v1/student/books/:book_id/stream
// Upgrades to WebSocket and hosts a live reading session: the server ticks at
// 1 Hz, pushes state, and commands the device microphone; the client sends
// navigation and submit actions.
func (h *WSHandler) ReadingStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bookID, err := uuid.Parse(c.Param("book_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book ID"})
		return
	}

	student, err := h.studentService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", student.ID).
		Str("book_id", bookID.String()).
		Logger()

	// Controller events arrive synchronously under the controller lock; the
	// sink must not block, so messages go through a buffered channel drained
	// by a single writer goroutine.
	out := make(chan any, 64)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case msg := <-out:
				if err := ws.WriteTyped(conn, msg); err != nil {
					wsLog.Debug().Err(err).Msg("Write failed")
					return
				}
			}
		}
	}()

	send := func(msg any) {
		select {
		case out <- msg:
		default:
			// A slow consumer loses intermediate ticks, never state: every
			// event is tick-shaped and the next one re-renders everything.
			wsLog.Warn().Msg("Outbound buffer full, dropping message")
		}
	}

	capture := &wsCapture{send: send}

	sess, err := h.readingService.Open(c.Request.Context(), student, bookID,
		capture,
		func(ev reading.Event) { send(translateEvent(ev)) },
	)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}
	defer sess.Close()

	// Full state for the freshly connected client.
	send(snapshotTick(sess.Snapshot()))

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.ClientRequest
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		ctx := context.Background()
		switch msg.Action {
		case ws.ActionNavigate:
			if err := sess.Navigate(ctx, msg.Delta); err != nil {
				send(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
			}
		case ws.ActionSubmit:
			if err := sess.Submit(ctx); err != nil {
				send(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
			}
		case ws.ActionComplete:
			if err := sess.Complete(ctx); err != nil {
				send(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
			}
		case ws.ActionExit:
			wsLog.Info().Msg("Student exited")
			return
		case ws.ActionPing:
			send(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			send(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

// wsCapture implements reading.AudioCapture by commanding the device
// microphone over the stream. The server never sees the recording at stop
// time; segments arrive later through the HTTP upload path.
type wsCapture struct {
	send func(any)
	page int
}

func (c *wsCapture) Start(_ context.Context, page int) error {
	c.page = page
	c.send(ws.RecordingCommand{Event: ws.EventStartRecording, Page: page})
	return nil
}

func (c *wsCapture) Stop(_ context.Context) (string, error) {
	c.send(ws.RecordingCommand{Event: ws.EventStopRecording, Page: c.page})
	return "", nil
}

// translateEvent maps a controller event onto the wire schema.
func translateEvent(ev reading.Event) any {
	switch ev.Type {
	case reading.EventTick:
		return ws.TickResponse{
			Event:            ws.EventTick,
			Page:             ev.Page,
			TotalPages:       ev.TotalPages,
			PageSeconds:      ev.ElapsedSeconds,
			Recording:        ev.Recording,
			CanGoNext:        ev.CanGoNext,
			CanGoPrev:        ev.CanGoPrev,
			SecondsUntilNext: secondsUntilNext(ev.ElapsedSeconds),
		}
	case reading.EventUploadProgress:
		return ws.UploadProgressResponse{Event: ws.EventUploadProgress, Pct: float64(ev.UploadPct)}
	case reading.EventCaptureFailed:
		return ws.NoticeResponse{Event: ws.EventCaptureFailed, Page: ev.Page, Message: ev.Message}
	case reading.EventPageCapped:
		return ws.NoticeResponse{Event: ws.EventPageCapped, Page: ev.Page}
	case reading.EventLifelineConsumed:
		return ws.NoticeResponse{Event: ws.EventLifelineConsumed, Page: ev.Page}
	case reading.EventSessionReset:
		return ws.NoticeResponse{Event: ws.EventSessionReset, Page: ev.Page}
	case reading.EventSubmitted:
		return ws.NoticeResponse{Event: ws.EventSubmitted}
	case reading.EventCompleted:
		return ws.NoticeResponse{Event: ws.EventCompleted}
	default:
		return ws.NoticeResponse{Event: ws.Event(ev.Type), Page: ev.Page, Message: ev.Message}
	}
}

// snapshotTick renders a full tick from a snapshot, for connection setup.
func snapshotTick(snap reading.Snapshot) ws.TickResponse {
	return ws.TickResponse{
		Event:            ws.EventTick,
		Page:             snap.CurrentPage,
		TotalPages:       snap.TotalPages,
		PageSeconds:      snap.ElapsedSeconds,
		Recording:        snap.Recording,
		LifelineUsed:     snap.LifelineUsed,
		CanGoNext:        snap.CanGoNext,
		CanGoPrev:        snap.CanGoPrev,
		IsSubmitted:      snap.IsSubmitted,
		IsCompleted:      snap.IsCompleted,
		SecondsUntilNext: secondsUntilNext(snap.ElapsedSeconds),
	}
}

func secondsUntilNext(elapsed int) int {
	if elapsed >= reading.MinDwellSeconds {
		return 0
	}
	return reading.MinDwellSeconds - elapsed
}
