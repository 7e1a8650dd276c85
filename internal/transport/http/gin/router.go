package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	redisrepo "github.com/kirinyoku/checkin-go/internal/repository/redis"
	"github.com/kirinyoku/checkin-go/internal/service"
)

// NewRouter builds the HTTP API. idem and limiter may be nil when Redis is
// disabled.
func NewRouter(
	svcs *service.Services,
	h *hub.Hub,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/flights/:id", handleGetFlight(svcs))
	r.GET("/flights/:id/seats", handleListSeats(svcs))
	r.PUT("/flights/:id/status", handleUpdateStatus(svcs))

	r.POST("/checkin", RateLimitMiddleware(limiter, logger), handleCheckIn(svcs, idem))

	hubAPI := r.Group("/hub")
	{
		hubAPI.GET("/stream", handleStream(svcs, h, logger))
		hubAPI.POST("/:conn/join", handleJoin(svcs, h))
		hubAPI.POST("/:conn/leave", handleLeave(h))
		hubAPI.POST("/:conn/select", handleSelect(svcs, h))
		hubAPI.POST("/:conn/deselect", handleDeselect(svcs, h))
	}

	// TODO: put the admin group behind the agent authentication middleware once it exists.
	admin := r.Group("/admin")
	{
		admin.POST("/seats/:id/release", handleReleaseSeat(svcs))
	}

	return r
}

// @Summary  Get flight
// @Param    id  path  int  true  "Flight ID"
// @Success  200  {object}  domain.Flight
// @Failure  404  {object}  ErrorResponse
// @Router   /flights/{id} [get]
func handleGetFlight(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		f, err := svcs.Flights.GetFlight(c.Request.Context(), flightID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithETag(c, http.StatusOK, f, "public, max-age=15")
	}
}

// @Summary  List flight seats
// @Param    id    path   int     true   "Flight ID"
// @Param    only  query  string  false  "free"
// @Success  200  {array}   domain.Seat
// @Failure  404  {object}  ErrorResponse
// @Router   /flights/{id}/seats [get]
func handleListSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seats, err := svcs.Flights.ListSeats(c.Request.Context(), flightID)
		if err != nil {
			respondErr(c, err)
			return
		}
		if c.Query("only") == "free" {
			free := seats[:0]
			for _, s := range seats {
				if !s.Occupied {
					free = append(free, s)
				}
			}
			seats = free
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, seats)
	}
}

// @Summary  Update flight status
// @Param    id   path  int                  true  "Flight ID"
// @Param    req  body  UpdateStatusRequest  true  "payload"
// @Success  200  {object}  domain.Flight
// @Failure  404  {object}  ErrorResponse
// @Failure  422  {object}  ErrorResponse  "unknown status"
// @Router   /flights/{id}/status [put]
func handleUpdateStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		f, err := svcs.Flights.UpdateStatus(c.Request.Context(), flightID, req.Status)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, f)
	}
}

// @Summary  Check in a passenger (idempotent)
// @Param    req  body  CheckInRequest  true  "payload"
// @Header   200  {string}  Idempotency-Key  "echo"
// @Success  200  {object}  CheckInResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse  "passenger or seat not found"
// @Failure  409  {object}  ErrorResponse  "seat taken / already checked in / flight full"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Failure  503  {object}  ErrorResponse  "ledger unavailable, retry"
// @Router   /checkin [post]
func handleCheckIn(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemCheckIn(idemKey)

			state, payload, err := idem.Begin(ctx, idemStorageKey)
			if err != nil {
				respondErr(c, domain.Transient(err))
				return
			}

			switch state {
			case redisrepo.IdemReplay:
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
				return
			case redisrepo.IdemInFlight:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{
					Error:     string(domain.KindTransient),
					Reason:    "idempotency_in_progress",
					Message:   "The same check-in is already being processed.",
					Retryable: true,
				})
				return
			}
		}

		res, err := svcs.CheckIn.CheckIn(ctx, req.PassportNumber, req.SeatNumber)
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Abandon(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := newCheckInResponse(res)

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.Complete(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Release an occupied seat
// @Param    id  path  int  true  "Seat ID"
// @Success  200  {object}  domain.Seat
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "seat not occupied"
// @Router   /admin/seats/{id}/release [post]
func handleReleaseSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seatID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seat, err := svcs.CheckIn.Release(c.Request.Context(), seatID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, seat)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   string(domain.KindProtocolViolation),
		Reason:  domain.ErrInvalidRequest.Reason,
		Message: msg,
	})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	rej := domain.AsRejection(err)

	status := http.StatusInternalServerError
	switch rej.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindProtocolViolation:
		status = http.StatusUnprocessableEntity
	case domain.KindTransient:
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", "1")
	}

	if rej.Kind == domain.KindTransient {
		_ = c.Error(err)
	}

	c.JSON(status, ErrorResponse{
		Error:     string(rej.Kind),
		Reason:    rej.Reason,
		Message:   rej.Message,
		Retryable: rej.Kind == domain.KindTransient,
	})
}
