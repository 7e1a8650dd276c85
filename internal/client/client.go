// Package client talks to the check-in server over its HTTP API and event
// stream. A Client satisfies mirror.Transport, so a Go agent UI can drive
// a Mirror against a live server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
)

var (
	ErrNotConnected     = errors.New("client: event stream not open")
	ErrAlreadyConnected = errors.New("client: event stream already open")
)

const eventBuffer = 64

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	connID string
	cancel context.CancelFunc
	events chan hub.Event
	done   chan struct{}
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type checkInBody struct {
	PassportNumber string `json:"passport_number"`
	SeatNumber     string `json:"seat_number,omitempty"`
}

type flightBody struct {
	FlightID int64 `json:"flight_id"`
}

type seatBody struct {
	FlightID   int64  `json:"flight_id"`
	SeatNumber string `json:"seat_number"`
}

type connectedBody struct {
	ConnectionID string `json:"connection_id"`
}

// Connect opens the event stream and waits for the server to assign a
// connection ID. Events are delivered on Events until ctx is done, Close
// is called, or the server ends the stream.
func (c *Client) Connect(ctx context.Context) error {
	const op = "client.Client.Connect"

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/hub/stream", nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%s:%w", op, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("%s:%w", op, domain.Transient(err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return fmt.Errorf("%s:%w", op, decodeError(resp))
	}

	fr := newFrameReader(resp.Body)

	hello, err := fr.next()
	if err != nil {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%s:%w", op, domain.Transient(err))
	}
	if hello.event != string(hub.EventConnected) {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%s: unexpected first event %q", op, hello.event)
	}

	var body connectedBody
	if err := json.Unmarshal([]byte(hello.data), &body); err != nil || body.ConnectionID == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%s: bad connected event: %q", op, hello.data)
	}

	events := make(chan hub.Event, eventBuffer)
	done := make(chan struct{})

	c.mu.Lock()
	c.connID = body.ConnectionID
	c.cancel = cancel
	c.events = events
	c.done = done
	c.mu.Unlock()

	go c.readLoop(streamCtx, resp.Body, fr, events, done)

	return nil
}

func (c *Client) readLoop(ctx context.Context, body io.ReadCloser, fr *frameReader, events chan<- hub.Event, done chan<- struct{}) {
	defer close(done)
	defer close(events)
	defer body.Close()

	for {
		f, err := fr.next()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("client: event stream ended", slog.Any("error", err))
			}
			return
		}

		switch hub.EventType(f.event) {
		case hub.EventSeatOccupied, hub.EventSeatAvailable, hub.EventSeatSelected,
			hub.EventSeatDeselected, hub.EventFlightStatusUpdated:
		default:
			continue
		}

		var ev hub.Event
		if err := json.Unmarshal([]byte(f.data), &ev); err != nil {
			c.logger.Debug("client: malformed event skipped", slog.String("event", f.event), slog.Any("error", err))
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// ConnectionID is the ID the server assigned to the open stream.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connID
}

// Events is closed when the stream ends.
func (c *Client) Events() <-chan hub.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.events
}

// Close ends the event stream. The server then releases every soft lock
// this connection still holds.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.connID = ""
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return nil
}

func (c *Client) FetchSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	const op = "client.Client.FetchSeats"

	var seats []domain.Seat
	if err := c.do(ctx, http.MethodGet, "/flights/"+strconv.FormatInt(flightID, 10)+"/seats", nil, &seats); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return seats, nil
}

func (c *Client) GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error) {
	const op = "client.Client.GetFlight"

	var f domain.Flight
	if err := c.do(ctx, http.MethodGet, "/flights/"+strconv.FormatInt(flightID, 10), nil, &f); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &f, nil
}

func (c *Client) JoinFlight(ctx context.Context, flightID int64) error {
	return c.command(ctx, "join", flightBody{FlightID: flightID})
}

func (c *Client) LeaveFlight(ctx context.Context, flightID int64) error {
	return c.command(ctx, "leave", flightBody{FlightID: flightID})
}

func (c *Client) SelectSeat(ctx context.Context, flightID int64, label string) error {
	return c.command(ctx, "select", seatBody{FlightID: flightID, SeatNumber: label})
}

func (c *Client) DeselectSeat(ctx context.Context, flightID int64, label string) error {
	return c.command(ctx, "deselect", seatBody{FlightID: flightID, SeatNumber: label})
}

func (c *Client) command(ctx context.Context, name string, body any) error {
	op := "client.Client." + name

	id := c.ConnectionID()
	if id == "" {
		return fmt.Errorf("%s:%w", op, ErrNotConnected)
	}

	if err := c.do(ctx, http.MethodPost, "/hub/"+url.PathEscape(id)+"/"+name, body, nil); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// CheckIn submits a check-in. An empty label lets the server pick.
func (c *Client) CheckIn(ctx context.Context, passport, label string) (*domain.CheckInResult, error) {
	const op = "client.Client.CheckIn"

	var res domain.CheckInResult
	if err := c.do(ctx, http.MethodPost, "/checkin", checkInBody{PassportNumber: passport, SeatNumber: label}, &res); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// decodeError turns an error response back into the server's rejection.
func decodeError(resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Reason != "" {
		return domain.RejectionFor(domain.ErrorKind(body.Error), body.Reason, body.Message)
	}

	err := fmt.Errorf("unexpected status %d", resp.StatusCode)
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Transient(err)
	}

	return err
}
