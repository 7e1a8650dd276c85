package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/service"
)

const (
	streamEventPing = "ping"
	streamKeepAlive = 25 * time.Second
)

// @Summary      Open an event stream
// @Description  Server-sent events. The first event is "Connected" with the
// @Description  connection ID used by the /hub/{conn}/... commands.
// @Param        flight_id  query  int  false  "join this flight right away"
// @Produce      text/event-stream
// @Success      200
// @Router       /hub/stream [get]
func handleStream(svcs *service.Services, h *hub.Hub, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var joinFlight int64
		if raw := c.Query("flight_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				badRequest(c, "invalid flight_id")
				return
			}
			if _, err := svcs.Flights.GetFlight(ctx, id); err != nil {
				respondErr(c, err)
				return
			}
			joinFlight = id
		}

		conn := h.Connect()
		defer h.Disconnect(conn)

		if joinFlight != 0 {
			if err := h.Join(conn, joinFlight); err != nil {
				respondErr(c, err)
				return
			}
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		c.Render(-1, sse.Event{
			Event: string(hub.EventConnected),
			Data:  ConnectedEvent{ConnectionID: conn.ID()},
		})
		c.Writer.Flush()

		logger.Debug("hub: stream opened", slog.String("conn", conn.ID()))

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		var seq int64
		for {
			select {
			case <-ctx.Done():
				logger.Debug("hub: stream closed", slog.String("conn", conn.ID()), slog.Int64("dropped", conn.Dropped()))
				return
			case ev, ok := <-conn.Events():
				if !ok {
					return
				}
				seq++
				c.Render(-1, sse.Event{
					Id:    strconv.FormatInt(seq, 10),
					Event: string(ev.Type),
					Data:  ev,
				})
				c.Writer.Flush()
			case <-ticker.C:
				c.Render(-1, sse.Event{Event: streamEventPing, Data: time.Now().Unix()})
				c.Writer.Flush()
			}
		}
	}
}

func lookupConn(c *gin.Context, h *hub.Hub) (*hub.Conn, bool) {
	conn, err := h.Lookup(c.Param("conn"))
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	return conn, true
}

// @Summary  Join a flight group
// @Param    conn  path  string         true  "Connection ID"
// @Param    req   body  FlightRequest  true  "payload"
// @Success  204
// @Failure  404  {object}  ErrorResponse  "flight not found"
// @Failure  422  {object}  ErrorResponse  "unknown connection"
// @Router   /hub/{conn}/join [post]
func handleJoin(svcs *service.Services, h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := lookupConn(c, h)
		if !ok {
			return
		}
		var req FlightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if _, err := svcs.Flights.GetFlight(c.Request.Context(), req.FlightID); err != nil {
			respondErr(c, err)
			return
		}
		if err := h.Join(conn, req.FlightID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Leave a flight group
// @Param    conn  path  string         true  "Connection ID"
// @Param    req   body  FlightRequest  true  "payload"
// @Success  204
// @Failure  422  {object}  ErrorResponse  "unknown connection"
// @Router   /hub/{conn}/leave [post]
func handleLeave(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := lookupConn(c, h)
		if !ok {
			return
		}
		var req FlightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		h.Leave(conn, req.FlightID)
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Soft-lock a seat
// @Param    conn  path  string       true  "Connection ID"
// @Param    req   body  SeatRequest  true  "payload"
// @Success  204
// @Failure  422  {object}  ErrorResponse  "seat not on this flight / not joined"
// @Router   /hub/{conn}/select [post]
func handleSelect(svcs *service.Services, h *hub.Hub) gin.HandlerFunc {
	return handleSoftLock(svcs, h, h.Select)
}

// @Summary  Release a soft lock
// @Param    conn  path  string       true  "Connection ID"
// @Param    req   body  SeatRequest  true  "payload"
// @Success  204
// @Failure  422  {object}  ErrorResponse  "seat not on this flight / not joined"
// @Router   /hub/{conn}/deselect [post]
func handleDeselect(svcs *service.Services, h *hub.Hub) gin.HandlerFunc {
	return handleSoftLock(svcs, h, h.Deselect)
}

func handleSoftLock(
	svcs *service.Services,
	h *hub.Hub,
	apply func(conn *hub.Conn, flightID int64, label string) error,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := lookupConn(c, h)
		if !ok {
			return
		}
		var req SeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		label := domain.NormalizeSeatLabel(req.SeatNumber)
		if err := svcs.Flights.ValidateSeat(c.Request.Context(), req.FlightID, label); err != nil {
			respondErr(c, err)
			return
		}
		if err := apply(conn, req.FlightID, label); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
