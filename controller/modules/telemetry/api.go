package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// LoadAPI registers the telemetry endpoints.
func (m *Controller) LoadAPI(r *mux.Router) {
	sr := r.PathPrefix("/api/telemetry").Subrouter()
	sr.HandleFunc("/latest", m.latest).Methods("GET")
	sr.HandleFunc("/channels", m.channelList).Methods("GET")
	sr.HandleFunc("/channels/{name}", m.channel).Methods("GET")
}

func (m *Controller) latest(w http.ResponseWriter, _ *http.Request) {
	f, ok := m.Latest()
	if !ok {
		http.Error(w, "No telemetry received yet", http.StatusNotFound)
		return
	}
	payload, err := encodeFrame(f, m.cfg.Channels)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (m *Controller) channelList(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.store.Channels())
}

func (m *Controller) channel(w http.ResponseWriter, req *http.Request) {
	samples, err := m.Snapshot(mux.Vars(req)["name"])
	if errors.Is(err, ErrUnknownChannel) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(samples)
}
