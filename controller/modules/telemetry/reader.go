package telemetry

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"golang.org/x/time/rate"

	"github.com/reef-pi/farmer/controller/link"
)

// ReaderConfig bounds how long a frame read may wait on the sensor link.
type ReaderConfig struct {
	// CycleTimeout bounds the wait for the first field of a frame.
	CycleTimeout time.Duration `json:"cycle_timeout"`
	// FieldTimeout bounds the wait for each following field.
	FieldTimeout time.Duration `json:"field_timeout"`
	// Pacing is the minimum gap between two field reads.
	Pacing time.Duration `json:"pacing"`
}

// DefaultReaderConfig matches the sensor board's 10 s cycle.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		CycleTimeout: 10 * time.Second,
		FieldTimeout: time.Second,
		Pacing:       100 * time.Millisecond,
	}
}

// Reader assembles frames from the sensor link. It is the link's only user.
type Reader struct {
	link    *link.Link
	cfg     ReaderConfig
	limiter *rate.Limiter
	calib   [Fields]*govaluate.EvaluableExpression
	now     func() time.Time
}

// NewReader compiles the channel calibrations and returns a reader on l.
func NewReader(l *link.Link, cfg ReaderConfig, channels []Channel) (*Reader, error) {
	r := &Reader{
		link:    l,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Pacing), 1),
		now:     time.Now,
	}
	for _, ch := range channels {
		if ch.Calibration == "" {
			continue
		}
		expr, err := govaluate.NewEvaluableExpression(ch.Calibration)
		if err != nil {
			return nil, fmt.Errorf("channel %s calibration %q: %w", ch.Name, ch.Calibration, err)
		}
		r.calib[ch.Index] = expr
	}
	return r, nil
}

// ReadFrame reads one full cycle. On a malformed field the rest of the
// cycle is discarded together with any buffered input.
func (r *Reader) ReadFrame(ctx context.Context) (Frame, error) {
	var f Frame
	err := r.link.Session(ctx, func(s *link.Session) error {
		for i := 0; i < Fields; i++ {
			timeout := r.cfg.FieldTimeout
			if i == 0 {
				timeout = r.cfg.CycleTimeout
			} else if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			line, err := s.ReadLine(ctx, timeout)
			if err != nil {
				if i > 0 {
					_ = s.Reset()
				}
				return fmt.Errorf("field %d: %w", i, err)
			}
			if i == 0 {
				// spend the token saved up while idle so field 1 is paced too
				r.limiter.Allow()
			}
			v, err := r.parse(i, line)
			if err != nil {
				_ = s.Reset()
				return err
			}
			f.Values[i] = v
		}
		f.Time = r.now()
		return nil
	})
	return f, err
}

func (r *Reader) parse(i int, line string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: field %d %q", ErrMalformedTelemetry, i, line)
	}
	if expr := r.calib[i]; expr != nil {
		out, err := expr.Evaluate(map[string]interface{}{"value": v})
		if err != nil {
			return 0, fmt.Errorf("field %d calibration: %w", i, err)
		}
		cal, ok := out.(float64)
		if !ok {
			return 0, fmt.Errorf("field %d calibration returned %T", i, out)
		}
		v = cal
	}
	return round2(v), nil
}
