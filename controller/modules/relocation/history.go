package relocation

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// HistoryBucket keeps the outcome of every relocation attempt.
	HistoryBucket = "relocation_history"
	historyLimit  = 200
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeNoAck    = "no_ack"
	OutcomeFailed   = "failed"
)

// Record is one finished relocation attempt.
type Record struct {
	ID       string        `json:"id"`
	From     int           `json:"from"`
	To       int           `json:"to"`
	Species  string        `json:"species,omitempty"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Time     int64         `json:"ts"`
	Duration time.Duration `json:"duration"`
}

// Age renders how long ago the attempt started, e.g. "3 minutes ago".
func (r Record) Age() string {
	return humanize.Time(time.Unix(r.Time, 0))
}

func (m *Controller) record(rec *Record) {
	store := m.c.Store()
	if err := store.Create(HistoryBucket, func(id string) interface{} {
		rec.ID = id
		return rec
	}); err != nil {
		m.log.Error(err, "Failed to store relocation history", "from", rec.From, "to", rec.To)
		return
	}
	m.pruneHistory()
}

// History returns stored attempts, newest first.
func (m *Controller) History() ([]Record, error) {
	records := []Record{}
	err := m.c.Store().List(HistoryBucket, func(_ string, v []byte) error {
		var r Record
		if err := json.Unmarshal(v, &r); err == nil {
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		a, _ := strconv.Atoi(records[i].ID)
		b, _ := strconv.Atoi(records[j].ID)
		return a > b
	})
	return records, nil
}

func (m *Controller) pruneHistory() {
	records, err := m.History()
	if err != nil || len(records) <= historyLimit {
		return
	}
	for _, r := range records[historyLimit:] {
		if err := m.c.Store().Delete(HistoryBucket, r.ID); err != nil {
			m.log.Warn("Failed to prune relocation history", "id", r.ID, "err", err)
			return
		}
	}
}
