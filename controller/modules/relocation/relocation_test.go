package relocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-pi/farmer/controller"
	"github.com/reef-pi/farmer/controller/link"
	"github.com/reef-pi/farmer/controller/modules/registry"
	"github.com/reef-pi/farmer/controller/storage"
)

type fixture struct {
	m    *Controller
	reg  *registry.Registry
	port *link.FakePort
}

func strPtr(s string) *string { return &s }

func testConfig() Config {
	return Config{
		AckTimeout:      200 * time.Millisecond,
		DrainTimeout:    10 * time.Millisecond,
		ConsoleInterval: 20 * time.Millisecond,
		ConsolePoll:     10 * time.Millisecond,
	}
}

func newFixture(t *testing.T, size int) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewBolt(filepath.Join(dir, "farmer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(filepath.Join(dir, "positioning.json"), size)
	require.NoError(t, reg.Load())

	port := link.NewFakePort()
	m := New(controller.New(store), testConfig(), link.New("robot", port), reg)
	require.NoError(t, m.Setup())
	return &fixture{m: m, reg: reg, port: port}
}

// ackOn makes the fake robot answer cmd with the given lines.
func (f *fixture) ackOn(cmd string, lines ...string) {
	f.port.OnWrite = func(p []byte) {
		if strings.TrimSpace(string(p)) == cmd {
			f.port.Feed(strings.Join(lines, "\r\n") + "\r\n")
		}
	}
}

func (f *fixture) position(t *testing.T, pos int) registry.Position {
	t.Helper()
	p, err := f.reg.Get(pos)
	require.NoError(t, err)
	return p
}

func TestRelocate_MovesBookingAfterAck(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))
	f.ackOn("0T1", "Moving", "Success")

	rec, err := f.m.Relocate(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, rec.Outcome)
	assert.Equal(t, "Basil", rec.Species)

	assert.Equal(t, "0T1\n", f.port.Written())
	p0 := f.position(t, 0)
	assert.False(t, p0.Booked)
	assert.Nil(t, p0.Species)
	p1 := f.position(t, 1)
	assert.True(t, p1.Booked)
	require.NotNil(t, p1.Species)
	assert.Equal(t, "Basil", *p1.Species)

	logs := f.m.ActivityLog()
	assert.True(t, containsSuffix(logs, "robot: Moving"))
	assert.True(t, containsSuffix(logs, "0T1 acknowledged"))
	assert.Equal(t, StateIdle, f.m.Status().State)
}

func TestRelocate_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		booked   []int
		kind     PreconditionKind
	}{
		{name: "both occupied", from: 0, to: 1, booked: []int{0, 1}, kind: BothOccupied},
		{name: "both free", from: 0, to: 1, kind: BothFree},
		{name: "source free", from: 0, to: 1, booked: []int{1}, kind: SourceFree},
		{name: "same position", from: 2, to: 2, booked: []int{2}, kind: SamePosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 4)
			for _, pos := range tt.booked {
				require.NoError(t, f.reg.Set(pos, true, strPtr("Chard")))
			}
			before := f.reg.List()

			rec, err := f.m.Relocate(context.Background(), tt.from, tt.to)
			var pe *PreconditionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, OutcomeRejected, rec.Outcome)

			assert.Empty(t, f.port.Written(), "nothing may reach the robot")
			assert.Equal(t, before, f.reg.List())
		})
	}
}

func TestRelocate_NoAckDoesNotCommit(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))
	f.ackOn("0T1", "Moving")

	_, err := f.m.Relocate(context.Background(), 0, 1)
	require.ErrorIs(t, err, ErrNoAck)

	assert.Equal(t, "0T1\n", f.port.Written())
	assert.True(t, f.position(t, 0).Booked)
	assert.False(t, f.position(t, 1).Booked)
	assert.Equal(t, OutcomeNoAck, f.m.Status().Last.Outcome)
}

func TestRelocate_StaleSuccessIsNotAnAck(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))
	f.port.Feed("Success\n")

	_, err := f.m.Relocate(context.Background(), 0, 1)
	require.ErrorIs(t, err, ErrNoAck)
	assert.True(t, f.position(t, 0).Booked)
	assert.True(t, containsSuffix(f.m.ActivityLog(), "robot: Success"))
}

func TestRelocate_UnknownPosition(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, f.reg.Set(0, true, nil))

	_, err := f.m.Relocate(context.Background(), 0, 7)
	require.ErrorIs(t, err, registry.ErrNotFound)
	assert.Empty(t, f.port.Written())
}

func TestRelocate_History(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))
	f.ackOn("0T1", "Success")

	_, err := f.m.Relocate(context.Background(), 0, 1)
	require.NoError(t, err)
	_, err = f.m.Relocate(context.Background(), 0, 1)
	require.Error(t, err)

	records, err := f.m.History()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, OutcomeRejected, records[0].Outcome)
	assert.Equal(t, OutcomeSuccess, records[1].Outcome)
	assert.Equal(t, "Basil", records[1].Species)
}

func TestController_QueueWorker(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))
	require.NoError(t, f.reg.Set(2, true, strPtr("Mint")))
	f.port.OnWrite = func(p []byte) { f.port.Feed("Success\n") }

	_, err := f.m.Enqueue(0, 1)
	require.NoError(t, err)
	_, err = f.m.Enqueue(2, 3)
	require.NoError(t, err)
	_, err = f.m.Enqueue(1, 3)
	require.ErrorIs(t, err, ErrQueued)

	f.m.Start(context.Background())
	defer f.m.Stop()

	require.Eventually(t, func() bool {
		b1, _ := f.reg.BookingState(1)
		b3, _ := f.reg.BookingState(3)
		return b1 && b3
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "0T1\n2T3\n", f.port.Written())
}

func TestController_ConsoleCollectsRobotOutput(t *testing.T) {
	f := newFixture(t, 2)
	f.port.Feed("homing\nready\n")

	f.m.Start(context.Background())
	defer f.m.Stop()

	require.Eventually(t, func() bool {
		return containsSuffix(f.m.ActivityLog(), "robot: ready")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsole_Capped(t *testing.T) {
	c := &console{}
	for i := 0; i < consoleSize+20; i++ {
		c.appendLog("line")
	}
	assert.Len(t, c.entries(), consoleSize)
}

func TestAPI(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))
	require.NoError(t, f.reg.Set(1, true, strPtr("Chard")))
	router := mux.NewRouter()
	f.m.LoadAPI(router)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/api/relocate", `{"from":0,"to":1}`).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/api/relocate", `{"from":0,"to":9}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/relocate", `{"from":0}`).Code)

	f.ackOn("0T2", "Success")
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/relocate", `{"from":0,"to":2}`).Code)

	rec := do(http.MethodPost, "/api/relocations", `{"from":2,"to":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/api/relocations", `{"from":3,"to":0}`).Code)
	assert.Contains(t, do(http.MethodGet, "/api/relocations/queue", "").Body.String(), `"from":2`)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/relocations/queue/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/relocations/queue/1", "").Code)

	hist := do(http.MethodGet, "/api/relocations/history", "").Body.String()
	assert.Contains(t, hist, `"outcome":"success"`)
	assert.Contains(t, hist, `"age":`)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/robot/status", "").Code)
	assert.Contains(t, do(http.MethodGet, "/api/robot/log", "").Body.String(), "0T2 acknowledged")
}

func containsSuffix(logs []string, suffix string) bool {
	for _, l := range logs {
		if strings.HasSuffix(l, suffix) {
			return true
		}
	}
	return false
}

func TestRelocate_CommitsAckAfterCallerCancels(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.reg.Set(0, true, strPtr("Basil")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	status := make(chan []byte, 1)
	f.port.OnWrite = func([]byte) {
		data, _ := json.Marshal(f.m.Status())
		status <- data
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
			time.Sleep(30 * time.Millisecond)
			f.port.Feed("Success\n")
		}()
	}

	rec, err := f.m.Relocate(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, rec.Outcome)
	assert.Equal(t, "0T1\n", f.port.Written())
	assert.False(t, f.position(t, 0).Booked)
	assert.True(t, f.position(t, 1).Booked)

	st := string(<-status)
	assert.Contains(t, st, `"state":"awaiting_ack"`)
	assert.Contains(t, st, `"from":0`)
	assert.Contains(t, st, `"to":1`)
}

func TestDrain_StopsAfterLimit(t *testing.T) {
	f := newFixture(t, 2)
	for i := 0; i < drainLimit+50; i++ {
		f.port.Feed(fmt.Sprintf("chatter %d\n", i))
	}
	l := f.m.link

	err := l.Session(context.Background(), func(s *link.Session) error {
		return f.m.drain(context.Background(), s, 50*time.Millisecond)
	})
	require.NoError(t, err)
	logs := f.m.ActivityLog()
	require.Len(t, logs, drainLimit)
	assert.True(t, strings.HasSuffix(logs[len(logs)-1], fmt.Sprintf("robot: chatter %d", drainLimit-1)))

	err = l.Session(context.Background(), func(s *link.Session) error {
		line, err := s.ReadLine(context.Background(), 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("chatter %d", drainLimit), line)
		return nil
	})
	require.NoError(t, err)
}
