package relocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/farmer/controller/link"
)

const consoleSize = 100

// console is the robot activity log: everything the robot said outside a
// relocation exchange plus protocol notes, newest last.
type console struct {
	mu   sync.Mutex
	logs []string
}

// appendLog adds an entry to the activity log, capped at consoleSize entries.
func (c *console) appendLog(msg string) {
	entry := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entry)
	if len(c.logs) > consoleSize {
		c.logs = c.logs[len(c.logs)-consoleSize:]
	}
}

func (c *console) entries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

// runConsole collects unsolicited robot output. Each poll takes the link for
// a short session so relocations are never blocked for long.
func (m *Controller) runConsole(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ConsoleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := m.link.Session(ctx, func(s *link.Session) error {
			return m.drain(ctx, s, m.cfg.ConsolePoll)
		})
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, link.ErrClosed):
			return
		default:
			m.log.Warn("Robot console read failed", "err", err)
		}
	}
}

// drainLimit caps the lines taken in one drain so a chatty robot cannot
// hold the link.
const drainLimit = consoleSize

// drain moves the lines the robot has already sent into the activity log. It
// stops after a read of wait with no line or after drainLimit lines.
func (m *Controller) drain(ctx context.Context, s *link.Session, wait time.Duration) error {
	for i := 0; i < drainLimit; i++ {
		line, err := s.ReadLine(ctx, wait)
		if errors.Is(err, link.ErrTimeout) {
			return nil
		}
		if err != nil {
			return err
		}
		if line != "" {
			m.console.appendLog("robot: " + line)
		}
	}
	return nil
}
