// Package widget implements the chat widget controller: it turns one line of
// user input into a transcript entry, a /query round trip and a reply entry.
//
// SendMessage is split into three steps so an event loop can suspend at the
// network call without blocking:
//
//	ex, err := ctrl.Begin(input) // on the UI loop: validate, append user entry
//	res := ex.Run(ctx)           // off the UI loop: the only suspension point
//	res = ctrl.Finish(res)       // on the UI loop: append reply or report failure
//
// At most one exchange is in flight; Begin refuses a second one with
// ErrPending, so replies always pair with their query in send order.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

// Querier sends one query to the backend
type Querier interface {
	Query(ctx context.Context, text string) (*models.QueryResponse, error)
}

// View receives the controller's visible side effects.
// All calls happen on the goroutine that calls Begin and Finish.
type View interface {
	Appended(msg models.Message)
	InputCleared()
	ScrollToBottom()
	Failed(query string, err error)
}

// Controller owns the transcript and the pending-exchange guard
type Controller struct {
	client     Querier
	transcript *Transcript
	view       View
	log        zerolog.Logger

	mu      sync.Mutex
	pending *Exchange
	seq     uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithView attaches a view observer
func WithView(v View) Option {
	return func(c *Controller) {
		c.view = v
	}
}

// WithTranscript uses an existing transcript instead of a fresh one
func WithTranscript(t *Transcript) Option {
	return func(c *Controller) {
		c.transcript = t
	}
}

// WithLogger attaches a structured logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// New creates a controller that sends queries through client
func New(client Querier, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		view:   nopView{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transcript == nil {
		c.transcript = NewTranscript()
	}
	if c.view == nil {
		c.view = nopView{}
	}
	return c
}

// Transcript returns the transcript the controller appends to
func (c *Controller) Transcript() *Transcript {
	return c.transcript
}

// Pending reports whether an exchange is in flight
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Exchange is one in-flight query
type Exchange struct {
	ID        uint64
	Query     string
	StartedAt time.Time

	client Querier
}

// Result is the outcome of one exchange
type Result struct {
	ExchangeID uint64
	Query      string
	Response   *models.QueryResponse
	// Reply is set by Finish when the reply was appended
	Reply   *models.Message
	Err     error
	Latency time.Duration
}

// OK reports whether the exchange produced a reply
func (r Result) OK() bool {
	return r.Err == nil && r.Response != nil
}

// Begin validates input, appends the user entry and marks an exchange pending.
// Empty or whitespace-only input returns ErrEmptyInput and changes nothing.
// The query text is sent exactly as typed.
func (c *Controller) Begin(input string) (*Exchange, error) {
	if strings.TrimSpace(input) == "" {
		return nil, apierrors.ErrEmptyInput
	}

	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return nil, apierrors.ErrPending
	}
	c.seq++
	ex := &Exchange{
		ID:        c.seq,
		Query:     input,
		StartedAt: time.Now(),
		client:    c.client,
	}
	c.pending = ex
	c.mu.Unlock()

	msg := c.transcript.Append(models.NewUserMessage(input))
	c.view.Appended(msg)
	c.view.InputCleared()

	c.log.Debug().Uint64("exchange", ex.ID).Int("chars", len(input)).Msg("query started")
	return ex, nil
}

// Run performs the network round trip. It touches neither the transcript
// nor the view, so it may run on any goroutine.
func (e *Exchange) Run(ctx context.Context) Result {
	resp, err := e.client.Query(ctx, e.Query)
	return Result{
		ExchangeID: e.ID,
		Query:      e.Query,
		Response:   resp,
		Err:        err,
		Latency:    time.Since(e.StartedAt),
	}
}

// Finish clears the pending exchange and renders its outcome: the reply
// entry plus a scroll to the bottom, or a failure report with no entry.
// Results for an exchange that is no longer pending are ignored.
func (c *Controller) Finish(res Result) Result {
	c.mu.Lock()
	if c.pending == nil || c.pending.ID != res.ExchangeID {
		c.mu.Unlock()
		c.log.Debug().Uint64("exchange", res.ExchangeID).Msg("stale result dropped")
		return res
	}
	c.pending = nil
	c.mu.Unlock()

	if res.Err == nil && res.Response == nil {
		res.Err = apierrors.ErrInvalidResponse
	}

	if res.Err != nil {
		c.log.Warn().
			Uint64("exchange", res.ExchangeID).
			Dur("latency", res.Latency).
			Err(res.Err).
			Msg("query failed")
		c.view.Failed(res.Query, res.Err)
		return res
	}

	msg := c.transcript.Append(models.NewAssistantMessage(res.Response.ResponseMessage))
	res.Reply = &msg
	c.view.Appended(msg)
	c.view.ScrollToBottom()

	c.log.Debug().
		Uint64("exchange", res.ExchangeID).
		Dur("latency", res.Latency).
		Int("matches", res.Response.Matches).
		Msg("query answered")
	return res
}

// SendMessage runs Begin, Run and Finish in sequence
func (c *Controller) SendMessage(ctx context.Context, input string) Result {
	ex, err := c.Begin(input)
	if err != nil {
		return Result{Query: input, Err: err}
	}
	return c.Finish(ex.Run(ctx))
}

type nopView struct{}

func (nopView) Appended(models.Message) {}
func (nopView) InputCleared() {}
func (nopView) ScrollToBottom() {}
func (nopView) Failed(string, error) {}
