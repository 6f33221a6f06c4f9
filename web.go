package fiata2dp

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivmarkov/fiat-a2dp/internal/coord"
	"github.com/ivmarkov/fiat-a2dp/internal/logging"
)

var wsLogger = logging.GetSubsystemLogger("websocket")

// newRouter builds the HTTP surface: live state, a WebSocket feed of
// coordinator snapshots, call and playback control, and prometheus
// metrics.
func newRouter(coordinator *coord.Coordinator, broadcaster *coord.StateBroadcaster) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, coordinator.Snapshot())
	})

	r.GET("/events", func(c *gin.Context) {
		handleEventsWebsocket(c, broadcaster)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	command := func(cmd coord.UserCommand) gin.HandlerFunc {
		return func(c *gin.Context) {
			if err := coordinator.SubmitCommand(cmd); err != nil {
				status := http.StatusServiceUnavailable
				if errors.Is(err, coord.ErrQueueFull) {
					status = http.StatusTooManyRequests
				}
				c.JSON(status, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"command": string(cmd)})
		}
	}

	call := r.Group("/call")
	{
		call.POST("/answer", command(coord.CommandAnswer))
		call.POST("/reject", command(coord.CommandReject))
		call.POST("/hangup", command(coord.CommandHangup))
	}

	playback := r.Group("/playback")
	{
		playback.POST("/pause", command(coord.CommandPause))
		playback.POST("/resume", command(coord.CommandResume))
		playback.POST("/next", command(coord.CommandNextTrack))
		playback.POST("/previous", command(coord.CommandPreviousTrack))
	}

	return r
}

func handleEventsWebsocket(c *gin.Context, broadcaster *coord.StateBroadcaster) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		wsLogger.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	connectionID := uuid.NewString()
	l := wsLogger.With().Str("connectionID", connectionID).Logger()

	ctx := c.Request.Context()
	broadcaster.Subscribe(connectionID, conn, ctx, &l)
	defer broadcaster.Unsubscribe(connectionID)

	// Drain client frames until the connection goes away. The feed is
	// one-directional; control goes through the REST endpoints.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			l.Debug().Err(err).Msg("websocket closed")
			return
		}
	}
}
