package actuator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// LoadAPI registers the actuator endpoints.
func (m *Controller) LoadAPI(r *mux.Router) {
	sr := r.PathPrefix("/api").Subrouter()
	sr.HandleFunc("/lighting/config", m.getLighting).Methods("GET")
	sr.HandleFunc("/lighting/config", m.putLighting).Methods("PUT")
	sr.HandleFunc("/pump", m.percentHandler(m.SetPump)).Methods("POST")
	sr.HandleFunc("/nutrients", m.percentHandler(m.SetNutrients)).Methods("POST")
	sr.HandleFunc("/circulation/{channel}", m.startCirculation).Methods("POST")
	sr.HandleFunc("/circulation/{channel}", m.stopCirculation).Methods("DELETE")
	sr.HandleFunc("/actuators/reset", m.reset).Methods("POST")
	sr.HandleFunc("/dosing/config", m.getDosing).Methods("GET")
	sr.HandleFunc("/dosing/config", m.putDosing).Methods("PUT")
}

func (m *Controller) getLighting(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Lighting())
}

func (m *Controller) putLighting(w http.ResponseWriter, r *http.Request) {
	var s LightSettings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := m.UpdateLighting(s); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Controller) percentHandler(set func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Value float64 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		if err := set(payload.Value); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (m *Controller) startCirculation(w http.ResponseWriter, r *http.Request) {
	ch, err := strconv.Atoi(mux.Vars(r)["channel"])
	if err != nil {
		http.Error(w, "Invalid channel", http.StatusBadRequest)
		return
	}
	var payload struct {
		Duty int `json:"duty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := m.StartCirculation(ch, payload.Duty); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Controller) stopCirculation(w http.ResponseWriter, r *http.Request) {
	ch, err := strconv.Atoi(mux.Vars(r)["channel"])
	if err != nil {
		http.Error(w, "Invalid channel", http.StatusBadRequest)
		return
	}
	if err := m.StopCirculation(ch); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Controller) reset(w http.ResponseWriter, r *http.Request) {
	if err := m.ResetChannels(r.Context()); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Controller) getDosing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Dosing())
}

func (m *Controller) putDosing(w http.ResponseWriter, r *http.Request) {
	var d DosingSettings
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := m.UpdateDosing(d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidIntensity), errors.Is(err, ErrInvalidTime),
		errors.Is(err, ErrInvalidChannel), errors.Is(err, ErrInvalidDuty):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
