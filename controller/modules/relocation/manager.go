// Package relocation moves plants between positions with the robot and keeps
// the registry in step with what the robot confirmed.
package relocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/farmer/controller"
	"github.com/reef-pi/farmer/controller/link"
	"github.com/reef-pi/farmer/controller/modules/registry"
	"github.com/reef-pi/farmer/pkg/log"
)

// ackToken is the line the robot sends once the physical move is complete.
const ackToken = "Success"

// Registry is the part of the position registry a relocation touches.
type Registry interface {
	Get(pos int) (registry.Position, error)
	Swap(from, to int) error
}

// Config holds the robot exchange timings.
type Config struct {
	// AckTimeout bounds the wait for each robot line during a relocation.
	AckTimeout time.Duration `json:"ack_timeout"`
	// DrainTimeout bounds the read of stale robot output before a command.
	DrainTimeout    time.Duration `json:"drain_timeout"`
	ConsoleInterval time.Duration `json:"console_interval"`
	ConsolePoll     time.Duration `json:"console_poll"`
}

// DefaultConfig returns timings suited to the rig's robot firmware.
func DefaultConfig() Config {
	return Config{
		AckTimeout:      30 * time.Second,
		DrainTimeout:    50 * time.Millisecond,
		ConsoleInterval: 500 * time.Millisecond,
		ConsolePoll:     100 * time.Millisecond,
	}
}

// Status is a snapshot of the protocol for the status endpoint.
type Status struct {
	State   string   `json:"state"`
	From    int      `json:"from"`
	To      int      `json:"to"`
	Current *Request `json:"current,omitempty"`
	Queued  int      `json:"queued"`
	Last    *Record  `json:"last,omitempty"`
}

// Controller implements controller.Subsystem for the relocation robot.
type Controller struct {
	c       controller.Controller
	cfg     Config
	link    *link.Link
	reg     Registry
	queue   *Queue
	console *console
	log     log.Logger

	// relocMu keeps validate, exchange and commit of one relocation together.
	relocMu sync.Mutex

	mu     sync.Mutex
	active *request
	last   *Record
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ controller.Subsystem = (*Controller)(nil)

// New returns the relocation subsystem talking to the robot on l.
func New(c controller.Controller, cfg Config, l *link.Link, reg Registry) *Controller {
	return &Controller{
		c:       c,
		cfg:     cfg,
		link:    l,
		reg:     reg,
		queue:   NewQueue(c.Store()),
		console: &console{},
		log:     log.WithName("relocation"),
	}
}

// Setup creates the queue and history buckets.
func (m *Controller) Setup() error {
	for _, b := range []string{QueueBucket, HistoryBucket} {
		if err := m.c.Store().CreateBucket(b); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the robot console reader and the queue worker.
func (m *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	m.queue.open()

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.runConsole(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.queue.Process(func(r Request) {
			if _, err := m.Relocate(ctx, r.From, r.To); err != nil {
				m.console.appendLog(fmt.Sprintf("queued %s failed: %v", r.command(), err))
			}
		})
	}()
	m.log.Info("Relocation protocol started", "link", m.link.Name())
}

// Stop cancels the console reader and waits for the queue worker.
func (m *Controller) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.queue.Close()
	m.wg.Wait()
}

// Enqueue adds a relocation for the queue worker.
func (m *Controller) Enqueue(from, to int) (Request, error) {
	req, err := m.queue.Add(from, to)
	if err != nil {
		return req, err
	}
	m.console.appendLog(fmt.Sprintf("queued %s (request %s)", req.command(), req.ID))
	return req, nil
}

// Relocate moves the plant at from to the free position to. The registry
// changes only after the robot reported Success.
func (m *Controller) Relocate(ctx context.Context, from, to int) (Record, error) {
	m.relocMu.Lock()
	defer m.relocMu.Unlock()

	start := time.Now()
	req := newRequest(from, to, m.observe)
	m.mu.Lock()
	m.active = req
	m.mu.Unlock()

	species, err := m.run(ctx, req)

	rec := Record{
		From:     from,
		To:       to,
		Species:  species,
		Outcome:  outcomeFor(err),
		Time:     start.Unix(),
		Duration: time.Since(start),
	}
	if err != nil {
		rec.Error = err.Error()
		m.log.Warn("Relocation failed", "from", from, "to", to, "err", err)
	} else {
		relocationDuration.Observe(rec.Duration.Seconds())
		m.log.Info("Relocation committed", "from", from, "to", to, "species", species, "took", rec.Duration)
	}
	relocations.WithLabelValues(rec.Outcome).Inc()
	m.record(&rec)

	m.mu.Lock()
	m.active = nil
	m.last = &rec
	m.mu.Unlock()
	return rec, err
}

func (m *Controller) run(ctx context.Context, req *request) (string, error) {
	if err := req.event(ctx, eventValidate); err != nil {
		return "", err
	}
	species, err := m.validate(req.From, req.To)
	if err != nil {
		return "", req.fail(ctx, err)
	}

	if err := req.event(ctx, eventSend); err != nil {
		return species, err
	}
	if err := m.exchange(ctx, req); err != nil {
		return species, req.fail(ctx, err)
	}

	if err := req.event(ctx, eventAck); err != nil {
		return species, err
	}
	if err := m.reg.Swap(req.From, req.To); err != nil {
		return species, req.fail(ctx, fmt.Errorf("commit %s: %w", req.command(), err))
	}
	return species, req.event(ctx, eventDone)
}

// validate checks the booking pair and returns the species being moved.
func (m *Controller) validate(from, to int) (string, error) {
	src, err := m.reg.Get(from)
	if err != nil {
		return "", err
	}
	dst, err := m.reg.Get(to)
	if err != nil {
		return "", err
	}
	if err := checkBooking(from, to, src.Booked, dst.Booked); err != nil {
		return "", err
	}
	if src.Species == nil {
		return "", nil
	}
	return *src.Species, nil
}

// exchange sends the command and waits for the acknowledgement inside one
// link session.
func (m *Controller) exchange(ctx context.Context, req *request) error {
	cmd := req.command()
	return m.link.Session(ctx, func(s *link.Session) error {
		if err := m.drain(ctx, s, m.cfg.DrainTimeout); err != nil {
			return err
		}
		m.console.appendLog("sending " + cmd)
		if err := s.WriteLine(cmd); err != nil {
			return err
		}
		// The robot moves once the command is out, so the ack must be
		// collected even if the caller goes away. AckTimeout still bounds it.
		ackCtx := context.WithoutCancel(ctx)
		for {
			line, err := s.ReadLine(ackCtx, m.cfg.AckTimeout)
			if errors.Is(err, link.ErrTimeout) {
				m.console.appendLog("no acknowledgement for " + cmd)
				return fmt.Errorf("%w: %s after %s", ErrNoAck, cmd, m.cfg.AckTimeout)
			}
			if err != nil {
				return err
			}
			if line == ackToken {
				m.console.appendLog(cmd + " acknowledged")
				return nil
			}
			if line != "" {
				m.console.appendLog("robot: " + line)
			}
		}
	})
}

func (m *Controller) observe(r *request, src, dst string) {
	m.log.Debug("Relocation state", "command", r.command(), "from", src, "to", dst)
}

// Status reports the running relocation, the queue and the last outcome.
func (m *Controller) Status() Status {
	st := Status{State: StateIdle, Current: m.queue.Current()}
	if pending, err := m.queue.List(); err == nil {
		st.Queued = len(pending)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		st.State = m.active.State()
		st.From, st.To = m.active.From, m.active.To
	}
	if m.last != nil {
		last := *m.last
		st.Last = &last
	}
	return st
}

// ActivityLog returns the robot console, oldest first.
func (m *Controller) ActivityLog() []string {
	return m.console.entries()
}

func outcomeFor(err error) string {
	var pe *PreconditionError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &pe):
		return OutcomeRejected
	case errors.Is(err, ErrNoAck):
		return OutcomeNoAck
	default:
		return OutcomeFailed
	}
}

func (r Request) command() string {
	return robotCommand(r.From, r.To)
}
