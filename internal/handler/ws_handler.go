package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/config"
	"github.com/somosuni/lms-backend/internal/metrics"
	"github.com/somosuni/lms-backend/internal/middleware"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/service"
	ws "github.com/somosuni/lms-backend/internal/websocket"
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

// CourseProgressSource computes a single course snapshot.
type CourseProgressSource interface {
	CourseProgress(ctx context.Context, studentID, courseID int) (*service.CourseProgressView, error)
}

// ProgressSubscriber opens the feed of a student's progress events.
type ProgressSubscriber interface {
	SubscribeProgress(ctx context.Context, studentID int) (<-chan *redis.Message, io.Closer, error)
}

type redisSubscriber struct {
	rdb *redis.Client
}

// SubscribeProgress returns once Redis has confirmed the subscription.
func (s redisSubscriber) SubscribeProgress(ctx context.Context, studentID int) (<-chan *redis.Message, io.Closer, error) {
	sub := s.rdb.Subscribe(ctx, config.CacheKey.StudentProgressChannel(studentID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	return sub.Channel(), sub, nil
}

// WSHandler streams live progress updates to a signed-in student.
type WSHandler struct {
	events   ProgressSubscriber
	progress CourseProgressSource
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, progress CourseProgressSource, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		events:   redisSubscriber{rdb: rdb},
		progress: progress,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ProgressStream godoc
// WS /ws/v1/student/progress/stream?token=
// Pushes result_recorded and course_progress events while the socket is open.
func (h *WSHandler) ProgressStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Configure(conn)

	metrics.ProgressStreams.Inc()
	defer metrics.ProgressStreams.Dec()

	studentID := claims.UserID
	wsLog := h.log.With().Int("student_id", studentID).Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, sub, err := h.events.SubscribeProgress(ctx, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Progress subscription failed")
		_ = ws.WriteError(conn, "progress stream unavailable")
		return
	}
	defer sub.Close()

	// gorilla allows one concurrent reader and one writer; this goroutine
	// owns reads and the loop below owns every write.
	requests := make(chan ws.Request)
	go func() {
		defer cancel()
		for {
			var req ws.Request
			if err := ws.ReadJSON(conn, &req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	wsLog.Info().Msg("Progress stream connected")
	courseID := 0

	for {
		var err error
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Progress stream closed")
			return

		case <-ticker.C:
			err = ws.WritePing(conn)

		case req := <-requests:
			switch req.Action {
			case ws.ActionPing:
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			case ws.ActionCourse:
				if req.CourseID <= 0 {
					err = ws.WriteError(conn, "course_id must be a positive integer")
					break
				}
				courseID = req.CourseID
				err = h.pushCourse(ctx, conn, studentID, courseID)
			default:
				err = ws.WriteError(conn, "unknown action")
			}

		case msg, ok := <-events:
			if !ok {
				return
			}
			var evt model.ResultEvent
			if jsonErr := json.Unmarshal([]byte(msg.Payload), &evt); jsonErr != nil || evt.Type != model.ResultEventRecorded {
				wsLog.Warn().Str("payload", msg.Payload).Msg("Ignoring malformed progress event")
				continue
			}
			err = ws.WriteTyped(conn, ws.ResultRecordedResponse{
				Event:      ws.EventResultRecorded,
				TestID:     evt.TestID,
				Percentage: evt.Percentage,
			})
			if err == nil && courseID != 0 {
				err = h.pushCourse(ctx, conn, studentID, courseID)
			}
		}

		if err != nil {
			wsLog.Debug().Err(err).Msg("Progress stream write failed")
			return
		}
	}
}

// pushCourse writes a fresh snapshot. Lookup failures are reported to the
// client; only write failures end the stream.
func (h *WSHandler) pushCourse(ctx context.Context, conn *websocket.Conn, studentID, courseID int) error {
	view, err := h.progress.CourseProgress(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			return ws.WriteError(conn, "course not found")
		}
		h.log.Error().Err(err).Int("student_id", studentID).Int("course_id", courseID).Msg("Progress snapshot failed")
		return ws.WriteError(conn, "progress unavailable")
	}
	return ws.WriteTyped(conn, ws.CourseProgressResponse{
		Event:    ws.EventCourseProgress,
		CourseID: courseID,
		Progress: view,
	})
}
