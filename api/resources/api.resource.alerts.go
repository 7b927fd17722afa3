// FilePath: api/resources/api.resource.alerts.go
package resources

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/leakservice"
	nuts "github.com/vaudience/go-nuts"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// EventSnapshot is the first message on every alert stream
const EventSnapshot anomaly.EventType = "snapshot"

// AlertHandlers encapsulates the leak alert HTTP handlers
type AlertHandlers struct {
	leakservice *leakservice.LeakService
	upgrader    websocket.Upgrader
}

func NewAlertHandlers(svc *leakservice.LeakService, allowedOrigins []string) *AlertHandlers {
	return &AlertHandlers{
		leakservice: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type currentQuery struct {
	Refresh bool `schema:"refresh"`
}

// @Summary Current alert state
// @Description The monitored node pair, its latest readings and the active alert if any
// @Tags alerts
// @Produce json
// @Param refresh query bool false "Re-read both nodes from the snapshot store first"
// @Success 200 {object} models.AlertState
// @Router /alerts/current [get]
// @Security BearerAuth
func (h *AlertHandlers) CurrentAlert(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	var q currentQuery
	if err := decodeQuery(&q, r); err != nil {
		respondWithError(w, err, requestID)
		return
	}
	if !q.Refresh {
		respondWithJSON(w, http.StatusOK, h.leakservice.CurrentAlert(r.Context()))
		return
	}
	state, err := h.leakservice.RefreshAlert(r.Context())
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

// @Summary Escalate the active alert
// @Description Notify maintenance about the active alert and record it as pending
// @Tags alerts
// @Produce json
// @Success 201 {object} models.Alert
// @Failure 400 {object} errors.APIError "no active alert"
// @Failure 500 {object} errors.APIError "notified but not recorded"
// @Failure 502 {object} errors.APIError "notification failed"
// @Router /alerts/escalate [post]
// @Security BearerAuth
func (h *AlertHandlers) EscalateAlert(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	alert, err := h.leakservice.EscalateCurrent(r.Context())
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, alert)
}

// @Summary Escalated alerts
// @Tags alerts
// @Produce json
// @Param limit query int false "Number of alerts (default 20, max 100)"
// @Success 200 {array} models.Alert
// @Router /alerts/recent [get]
// @Security BearerAuth
func (h *AlertHandlers) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	var q limitQuery
	if err := decodeQuery(&q, r); err != nil {
		respondWithError(w, err, requestID)
		return
	}
	alerts, err := h.leakservice.RecentAlerts(r.Context(), q.Limit)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, alerts)
}

// @Summary Alert stream
// @Description WebSocket pushing the current state followed by every alert and clear event
// @Tags alerts
// @Success 101
// @Router /alerts/stream [get]
// @Security BearerAuth
func (h *AlertHandlers) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		nuts.L.Warnf("[API] Alert stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := h.leakservice.SubscribeAlerts(ctx)

	// the read loop only handles control frames and notices the client leaving
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, anomaly.Event{Type: EventSnapshot, State: h.leakservice.CurrentAlert(ctx)}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "monitor stopped"))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev anomaly.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

