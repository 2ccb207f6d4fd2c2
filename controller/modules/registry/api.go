package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// LoadAPI registers the registry endpoints.
func (r *Registry) LoadAPI(router *mux.Router) {
	sr := router.PathPrefix("/api/positions").Subrouter()
	sr.HandleFunc("", r.listPositions).Methods("GET")
	sr.HandleFunc("/{id}", r.getPosition).Methods("GET")
	sr.HandleFunc("/{id}", r.putPosition).Methods("PUT")
	sr.HandleFunc("/{id}/label", r.getLabel).Methods("GET")
}

func (r *Registry) listPositions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(r.List())
}

func (r *Registry) getPosition(w http.ResponseWriter, req *http.Request) {
	id, ok := positionID(w, req)
	if !ok {
		return
	}
	p, err := r.Get(id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

func (r *Registry) putPosition(w http.ResponseWriter, req *http.Request) {
	id, ok := positionID(w, req)
	if !ok {
		return
	}
	var payload struct {
		Booked  bool    `json:"booked"`
		Species *string `json:"species"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := r.Set(id, payload.Booked, payload.Species); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Registry) getLabel(w http.ResponseWriter, req *http.Request) {
	id, ok := positionID(w, req)
	if !ok {
		return
	}
	label, err := r.Label(id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"label": label})
}

func positionID(w http.ResponseWriter, req *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, "Invalid position id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOutOfRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
