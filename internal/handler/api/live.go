package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	resdto "parkwise/internal/handler/dto/response"
	"parkwise/internal/handler/httperr"
	"parkwise/internal/handler/middleware"
	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveHandler streams lot updates over a WebSocket. Only the latest state is sent to a
// slow client.
type LiveHandler struct {
	q        queries.LotQueries
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewLiveHandler(q queries.LotQueries, cfg config.Config, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORS.AllowOrigins
	return &LiveHandler{
		q:      q,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
	}
}

// @Summary Live lot stream
// @Description WebSocket; every message is a LotResponse
// @Tags lot
// @Security BearerAuth
// @Success 101 "Switching Protocols"
// @Failure 401 {object} httperr.Response
// @Router /lot/live [get]
func (h *LiveHandler) Stream(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates, err := h.q.Live(ctx, identity)
	if err != nil {
		abortWithCommandError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn("failed to upgrade live stream", "error", err.Error())
		return
	}
	defer conn.Close()

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case view, open := <-updates:
			if !open {
				h.close(conn, websocket.CloseNormalClosure, "")
				return
			}
			res, err := resdto.FromLotView(&view)
			if err != nil {
				h.close(conn, websocket.CloseInternalServerErr, "encoding failed")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(res); err != nil {
				h.logger.Debug("live stream write failed", "email", identity.Email(), "error", err.Error())
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump discards client messages and cancels the stream once the peer goes away.
func (h *LiveHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live stream closed", "error", err.Error())
			}
			return
		}
	}
}

func (h *LiveHandler) close(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(liveWriteWait))
}
