// Package dispatcher serializes command tokens from the speech and GUI
// boundary into the interaction machine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/rs/zerolog"
)

// Dispatcher errors.
var (
	ErrDispatcherAlreadyRunning = errors.New("dispatcher already running")
	ErrDispatcherNotRunning     = errors.New("dispatcher not running")
	ErrUnrecognizedCommand      = errors.New("unrecognized command")
)

// CommandSwitchAction labels outcomes of SwitchAction requests. It is not
// part of the spoken vocabulary.
const CommandSwitchAction models.Command = "switch-action"

// Machine is the part of the interaction machine the dispatcher drives.
type Machine interface {
	Handle(ctx context.Context, cmd models.Command) (interaction.Result, error)

	// BeginExecute enters EXECUTING synchronously and returns the playback
	// to run.
	BeginExecute(ctx context.Context) (func() (interaction.Result, error), interaction.Result, error)

	Stop(ctx context.Context) (interaction.Result, error)
	SwitchAction(number int) error
	State() interaction.State
}

// Config contains dispatcher configuration.
type Config struct {
	// QueueWhileExecuting holds commands that arrive during playback until it
	// ends. When false they are processed at once and the ones that are
	// illegal while executing are rejected as busy.
	// Default: true.
	QueueWhileExecuting bool

	// OutcomeBuffer is the capacity of the Outcomes channel.
	// Default: 100.
	OutcomeBuffer int

	// StopTimeout bounds how long a stop request waits for playback to wind
	// down before reporting.
	// Default: 5 seconds.
	StopTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		QueueWhileExecuting: true,
		OutcomeBuffer:       100,
		StopTimeout:         5 * time.Second,
	}
}

// Stats contains dispatcher statistics.
type Stats struct {
	Running      bool       `json:"running"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	Pending      int        `json:"pending"`
	Total        int64      `json:"total"`
	Handled      int64      `json:"handled"`
	Rejected     int64      `json:"rejected"`
	Failed       int64      `json:"failed"`
	Unrecognized int64      `json:"unrecognized"`
}

// Ticket tracks a submitted command until its outcome is known.
type Ticket struct {
	ID      string
	Command models.Command
	done    chan Outcome
}

// Wait blocks until the outcome is available or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-t.done:
		t.done <- o
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type request struct {
	ticket     *Ticket
	raw        string
	receivedAt time.Time

	// apply replaces machine.Handle for requests that are not tokens.
	apply func(ctx context.Context) (interaction.Result, error)
}

// Dispatcher receives command tokens and hands them to the machine one at a
// time in arrival order. Stop requests bypass the queue.
type Dispatcher struct {
	config  Config
	machine Machine
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending []*request
	notify  chan struct{}

	subMu       sync.RWMutex
	subscribers map[string]func(Outcome)

	stats     Stats
	statsMu   sync.RWMutex
	outcomeCh chan Outcome
}

// New creates a dispatcher for machine.
func New(config Config, machine Machine) *Dispatcher {
	if config.OutcomeBuffer <= 0 {
		config.OutcomeBuffer = DefaultConfig().OutcomeBuffer
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultConfig().StopTimeout
	}

	return &Dispatcher{
		config:      config,
		machine:     machine,
		logger:      logging.Component("dispatcher"),
		notify:      make(chan struct{}, 1),
		subscribers: make(map[string]func(Outcome)),
		outcomeCh:   make(chan Outcome, config.OutcomeBuffer),
	}
}

// SetLogger overrides the component logger.
func (d *Dispatcher) SetLogger(logger zerolog.Logger) {
	d.logger = logger
}

// Start begins consuming the command queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrDispatcherAlreadyRunning
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true

	now := time.Now().UTC()
	d.statsMu.Lock()
	d.stats.Running = true
	d.stats.StartedAt = &now
	d.statsMu.Unlock()

	d.logger.Info().
		Bool("queue_while_executing", d.config.QueueWhileExecuting).
		Msg("dispatcher starting")

	d.wg.Add(1)
	go d.runLoop()
	return nil
}

// Stop halts the dispatcher. Commands still queued are reported as rejected.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.logger.Info().Msg("dispatcher stopping")
	d.cancel()
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()

	d.mu.Lock()
	leftover := d.pending
	d.pending = nil
	d.mu.Unlock()
	metricQueueDepth.Set(0)
	for _, req := range leftover {
		d.complete(req, interaction.Result{Command: req.ticket.Command, StepIndex: -1}, ErrDispatcherNotRunning, false)
	}

	d.statsMu.Lock()
	d.stats.Running = false
	d.stats.Pending = 0
	d.statsMu.Unlock()

	d.logger.Info().Msg("dispatcher stopped")
	return nil
}

// Submit accepts a raw token and returns a ticket for its outcome.
// Unrecognized tokens complete immediately without reaching the machine.
// stop-execution is handled at once, ahead of anything queued.
func (d *Dispatcher) Submit(raw string) (*Ticket, error) {
	cmd, ok := models.ParseCommand(raw)
	req := newRequest(cmd, raw)

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil, ErrDispatcherNotRunning
	}

	if !ok {
		d.mu.Unlock()
		d.logger.Debug().Str("raw", raw).Msg("unrecognized command")
		d.complete(req, interaction.Result{Command: cmd, StepIndex: -1},
			fmt.Errorf("%w: %q", ErrUnrecognizedCommand, raw), false)
		return req.ticket, nil
	}

	if cmd == models.CommandStopExecution {
		d.wg.Add(1)
		d.mu.Unlock()
		go func() {
			defer d.wg.Done()
			d.handleStop(req)
		}()
		return req.ticket, nil
	}

	d.enqueueLocked(req)
	d.mu.Unlock()
	return req.ticket, nil
}

// SwitchAction queues a switch to the numbered action behind the commands
// already pending, so a queued execute-action plays the action that was
// current when it was submitted.
func (d *Dispatcher) SwitchAction(ctx context.Context, number int) (Outcome, error) {
	req := newRequest(CommandSwitchAction, fmt.Sprintf("%s %d", CommandSwitchAction, number))
	req.apply = func(context.Context) (interaction.Result, error) {
		res := interaction.Result{Command: CommandSwitchAction, StepIndex: -1}
		if err := d.machine.SwitchAction(number); err != nil {
			return res, err
		}
		res.Detail = fmt.Sprintf("switched to action %d", number)
		return res, nil
	}

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return Outcome{}, ErrDispatcherNotRunning
	}
	d.enqueueLocked(req)
	d.mu.Unlock()
	return req.ticket.Wait(ctx)
}

func newRequest(cmd models.Command, raw string) *request {
	return &request{
		ticket: &Ticket{
			ID:      uuid.New().String(),
			Command: cmd,
			done:    make(chan Outcome, 1),
		},
		raw:        raw,
		receivedAt: time.Now().UTC(),
	}
}

// enqueueLocked appends req to the queue. d.mu must be held and the
// dispatcher running, so Stop either sees req in pending or the loop pops it.
func (d *Dispatcher) enqueueLocked(req *request) {
	d.pending = append(d.pending, req)
	depth := len(d.pending)
	metricQueueDepth.Set(float64(depth))

	d.statsMu.Lock()
	d.stats.Pending = depth
	d.statsMu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}

	d.logger.Debug().Str("command", string(req.ticket.Command)).Int("pending", depth).Msg("command queued")
}

// Dispatch submits raw and waits for its outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) (Outcome, error) {
	ticket, err := d.Submit(raw)
	if err != nil {
		return Outcome{}, err
	}
	return ticket.Wait(ctx)
}

// Outcomes returns the channel of command outcomes. Outcomes are dropped when
// the channel is full.
func (d *Dispatcher) Outcomes() <-chan Outcome {
	return d.outcomeCh
}

// Subscribe registers fn to be called with every outcome. fn runs on the
// dispatcher goroutine and must not block.
func (d *Dispatcher) Subscribe(id string, fn func(Outcome)) error {
	if id == "" || fn == nil {
		return fmt.Errorf("subscriber id and func are required")
	}
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if _, exists := d.subscribers[id]; exists {
		return fmt.Errorf("subscriber %q already registered", id)
	}
	d.subscribers[id] = fn
	return nil
}

// Unsubscribe removes a subscriber.
func (d *Dispatcher) Unsubscribe(id string) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	delete(d.subscribers, id)
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// runLoop is the single consumer of the command queue.
func (d *Dispatcher) runLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.notify:
		}

		for {
			if d.ctx.Err() != nil {
				return
			}
			req := d.pop()
			if req == nil {
				break
			}
			d.process(req)
		}
	}
}

func (d *Dispatcher) pop() *request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil
	}
	req := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	depth := len(d.pending)

	metricQueueDepth.Set(float64(depth))
	d.statsMu.Lock()
	d.stats.Pending = depth
	d.statsMu.Unlock()
	return req
}

func (d *Dispatcher) process(req *request) {
	cmd := req.ticket.Command
	if state := d.machine.State(); state == interaction.StateExecuting && !cmd.AllowedWhileExecuting() {
		d.complete(req, interaction.Result{Command: cmd, StepIndex: -1, State: state},
			&interaction.BusyError{Command: cmd, State: state}, false)
		return
	}

	if cmd == models.CommandExecuteAction && !d.config.QueueWhileExecuting {
		d.startExecute(req)
		return
	}
	d.handle(req)
}

// startExecute enters EXECUTING before the loop pops the next request, then
// plays back on its own goroutine so later commands are rejected as busy
// instead of waiting.
func (d *Dispatcher) startExecute(req *request) {
	run, res, err := d.machine.BeginExecute(d.ctx)
	if err != nil {
		d.complete(req, res, err, false)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		res, err := run()
		d.complete(req, res, err, false)
	}()
}

func (d *Dispatcher) handle(req *request) {
	var (
		res interaction.Result
		err error
	)
	if req.apply != nil {
		res, err = req.apply(d.ctx)
	} else {
		res, err = d.machine.Handle(d.ctx, req.ticket.Command)
	}
	d.complete(req, res, err, false)
}

func (d *Dispatcher) handleStop(req *request) {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.StopTimeout)
	defer cancel()
	res, err := d.machine.Stop(ctx)
	d.complete(req, res, err, true)
}

func (d *Dispatcher) complete(req *request, res interaction.Result, err error, priority bool) {
	out := Outcome{
		ID:         req.ticket.ID,
		Raw:        req.raw,
		Command:    req.ticket.Command,
		Status:     classify(err),
		Detail:     res.Detail,
		State:      res.State,
		StepIndex:  res.StepIndex,
		Priority:   priority,
		ReceivedAt: req.receivedAt,
		HandledAt:  time.Now().UTC(),
		Err:        err,
	}
	if out.State == "" && d.machine != nil && out.Status != OutcomeUnrecognized {
		out.State = d.machine.State()
	}
	if err != nil {
		out.Error = err.Error()
	}

	d.record(out)
	req.ticket.done <- out
}

func (d *Dispatcher) record(out Outcome) {
	metricCommands.WithLabelValues(string(out.Command), string(out.Status)).Inc()
	metricCommandLatency.Observe(float64(out.Duration().Milliseconds()))

	d.statsMu.Lock()
	d.stats.Total++
	switch out.Status {
	case OutcomeHandled:
		d.stats.Handled++
	case OutcomeRejected:
		d.stats.Rejected++
	case OutcomeFailed:
		d.stats.Failed++
	case OutcomeUnrecognized:
		d.stats.Unrecognized++
	}
	d.statsMu.Unlock()

	event := d.logger.Info()
	if out.Status == OutcomeFailed {
		event = d.logger.Warn()
	}
	event.
		Str("command_id", out.ID).
		Str("command", string(out.Command)).
		Str("status", string(out.Status)).
		Str("state", string(out.State)).
		Str("detail", out.Detail).
		Str("error", out.Error).
		Msg("command outcome")

	select {
	case d.outcomeCh <- out:
	default:
		// Channel full, drop outcome
	}

	d.subMu.RLock()
	subs := make([]func(Outcome), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		subs = append(subs, fn)
	}
	d.subMu.RUnlock()
	for _, fn := range subs {
		fn(out)
	}
}
