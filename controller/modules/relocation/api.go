package relocation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reef-pi/farmer/controller/link"
	"github.com/reef-pi/farmer/controller/modules/registry"
)

type move struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

// LoadAPI registers the relocation endpoints.
func (m *Controller) LoadAPI(r *mux.Router) {
	r.HandleFunc("/api/relocate", m.relocate).Methods("POST")

	sr := r.PathPrefix("/api/relocations").Subrouter()
	sr.HandleFunc("", m.enqueue).Methods("POST")
	sr.HandleFunc("/queue", m.queueList).Methods("GET")
	sr.HandleFunc("/queue/{id}", m.queueCancel).Methods("DELETE")
	sr.HandleFunc("/history", m.historyList).Methods("GET")

	r.HandleFunc("/api/robot/log", m.logList).Methods("GET")
	r.HandleFunc("/api/robot/status", m.status).Methods("GET")
}

func decodeMove(w http.ResponseWriter, req *http.Request) (int, int, bool) {
	var mv move
	if err := json.NewDecoder(req.Body).Decode(&mv); err != nil || mv.From == nil || mv.To == nil {
		http.Error(w, "Invalid JSON payload, expected {\"from\":int,\"to\":int}", http.StatusBadRequest)
		return 0, 0, false
	}
	return *mv.From, *mv.To, true
}

func (m *Controller) relocate(w http.ResponseWriter, req *http.Request) {
	from, to, ok := decodeMove(w, req)
	if !ok {
		return
	}
	rec, err := m.Relocate(req.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (m *Controller) enqueue(w http.ResponseWriter, req *http.Request) {
	from, to, ok := decodeMove(w, req)
	if !ok {
		return
	}
	r, err := m.Enqueue(from, to)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(r)
}

func (m *Controller) queueList(w http.ResponseWriter, _ *http.Request) {
	reqs, err := m.queue.List()
	if err != nil {
		http.Error(w, "Failed to list queue", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reqs)
}

func (m *Controller) queueCancel(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := m.queue.Remove(id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	m.console.appendLog("cancelled queued request " + id)
	w.WriteHeader(http.StatusNoContent)
}

func (m *Controller) historyList(w http.ResponseWriter, _ *http.Request) {
	records, err := m.History()
	if err != nil {
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	type entry struct {
		Record
		Age string `json:"age"`
	}
	out := make([]entry, 0, len(records))
	for _, r := range records {
		out = append(out, entry{Record: r, Age: r.Age()})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (m *Controller) logList(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.ActivityLog())
}

func (m *Controller) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Status())
}

func statusFor(err error) int {
	var pe *PreconditionError
	switch {
	case errors.As(err, &pe), errors.Is(err, ErrQueued), errors.Is(err, ErrRunning):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrOutOfRange),
		errors.Is(err, ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoAck), errors.Is(err, link.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, link.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
