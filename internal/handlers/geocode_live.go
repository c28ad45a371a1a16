package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/straywatch/straywatch-api/internal/geocode"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

const liveWriteTimeout = 5 * time.Second

// liveRequest is a client frame on /geocode/live.
type liveRequest struct {
	Type string `json:"type"` // "input" or "search"
	Q    string `json:"q"`
}

// liveResponse is a server frame on /geocode/live.
type liveResponse struct {
	Type   string          `json:"type"` // "suggestions", "result" or "error"
	Q      string          `json:"q"`
	Places []geocode.Place `json:"places"`
	Status int             `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// liveConn serialises writes from the session timer and the read loop.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *liveConn) send(resp liveResponse) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := l.conn.WriteJSON(resp); err != nil {
		logging.Debug().Err(err).Msg("geocode live write failed")
	}
}

func failureFrame(q string, err error) liveResponse {
	status, msg, outcome := geocodeFailure(err)
	telemetry.GeocodeOutcome(outcome)
	return liveResponse{Type: "error", Q: q, Status: status, Error: msg}
}

// RegisterGeocodeLiveRoutes registers the autocomplete websocket.
//
// GET /geocode/live
// - One autocomplete session per connection
// - {"type":"input","q":...} is debounced; only the newest lookup answers with "suggestions"
// - {"type":"search","q":...} runs at once with limit 1 and answers with "result"
func RegisterGeocodeLiveRoutes(r gin.IRoutes, lookup geocode.Lookup, opts geocode.SessionOptions) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	r.GET("/geocode/live", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Warn().Err(err).Str("request_id", logging.RequestID(c)).Msg("geocode live upgrade failed")
			return
		}
		defer conn.Close()

		out := &liveConn{conn: conn}
		session := geocode.NewSession(lookup, opts, func(o geocode.Outcome) {
			if o.Err != nil {
				out.send(failureFrame(o.Query, o.Err))
				return
			}
			telemetry.GeocodeOutcome("ok")
			out.send(liveResponse{Type: "suggestions", Q: o.Query, Places: o.Places})
		})
		defer session.Close()

		for {
			var req liveRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logging.Debug().Err(err).Msg("geocode live read ended")
				}
				return
			}

			switch req.Type {
			case "input":
				session.Input(req.Q)
			case "search":
				q := strings.TrimSpace(req.Q)
				places, err := session.Submit(c.Request.Context(), q)
				if err != nil {
					out.send(failureFrame(q, err))
					continue
				}
				if places == nil {
					places = []geocode.Place{}
				}
				telemetry.GeocodeOutcome("ok")
				out.send(liveResponse{Type: "result", Q: q, Places: places})
			default:
				out.send(liveResponse{Type: "error", Q: req.Q, Status: http.StatusBadRequest, Error: `type must be "input" or "search"`})
			}
		}
	})
}
