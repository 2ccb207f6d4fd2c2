// Package registry tracks which growing positions of the rig are booked.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/reef-pi/farmer/pkg/log"
)

// Position is one physical growing slot. Species is nil for an empty slot.
type Position struct {
	Position int     `json:"position"`
	Booked   bool    `json:"booked"`
	Species  *string `json:"species"`
}

func (p Position) species() string {
	if p.Species == nil {
		return ""
	}
	return *p.Species
}

// Registry is the persisted booking table. The slice offset of every record
// equals its Position field.
type Registry struct {
	path string
	size int
	log  log.Logger

	mu        sync.RWMutex
	positions []Position
}

// New returns a registry stored at path. size is the number of positions
// created when the file does not exist yet.
func New(path string, size int) *Registry {
	return &Registry{
		path: path,
		size: size,
		log:  log.WithName("registry"),
	}
}

// Load reads the registry file, creating an all-free registry of the
// configured size when it is missing.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		positions := make([]Position, r.size)
		for i := range positions {
			positions[i] = Position{Position: i}
		}
		if err := r.persist(positions); err != nil {
			return err
		}
		r.mu.Lock()
		r.positions = positions
		r.mu.Unlock()
		updateBookedGauge(positions)
		r.log.Info("Initialised empty registry", "path", r.path, "positions", r.size)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", r.path, err)
	}

	var positions []Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, p := range positions {
		if p.Position != i {
			return fmt.Errorf("%w: offset %d holds position %d", ErrCorrupt, i, p.Position)
		}
	}

	r.mu.Lock()
	r.positions = positions
	r.mu.Unlock()
	updateBookedGauge(positions)
	r.log.Info("Loaded registry", "path", r.path, "positions", len(positions))
	return nil
}

// Get returns the record for pos.
func (r *Registry) Get(pos int) (Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pos < 0 || pos >= len(r.positions) {
		return Position{}, fmt.Errorf("position %d: %w", pos, ErrNotFound)
	}
	return r.positions[pos], nil
}

// BookingState reports whether pos is occupied.
func (r *Registry) BookingState(pos int) (bool, error) {
	p, err := r.Get(pos)
	if err != nil {
		return false, err
	}
	return p.Booked, nil
}

// List returns a copy of all records.
func (r *Registry) List() []Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Position, len(r.positions))
	copy(out, r.positions)
	return out
}

// Set overwrites the record for pos and persists the registry. An empty
// species or "None" is stored as no species.
func (r *Registry) Set(pos int, booked bool, species *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pos < 0 || pos >= len(r.positions) {
		return fmt.Errorf("position %d: %w", pos, ErrNotFound)
	}

	next := r.clone()
	next[pos] = Position{Position: pos, Booked: booked, Species: normalizeSpecies(species)}
	if err := r.persist(next); err != nil {
		return err
	}
	r.positions = next
	updateBookedGauge(next)
	r.log.Info("Position updated", "position", pos, "booked", booked, "species", next[pos].species())
	return nil
}

// Swap moves the booking of from onto to and frees from, in a single write.
func (r *Registry) Swap(from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pos := range []int{from, to} {
		if pos < 0 || pos >= len(r.positions) {
			return fmt.Errorf("position %d: %w", pos, ErrOutOfRange)
		}
	}
	if from == to {
		return fmt.Errorf("position %d: %w", from, ErrSamePosition)
	}

	next := r.clone()
	moved := next[from]
	next[to] = Position{Position: to, Booked: moved.Booked, Species: moved.Species}
	next[from] = Position{Position: from}
	if err := r.persist(next); err != nil {
		return err
	}
	r.positions = next
	updateBookedGauge(next)
	r.log.Info("Positions swapped", "from", from, "to", to, "species", moved.species())
	return nil
}

// Label is a human readable summary of a position's booking.
func (r *Registry) Label(pos int) (string, error) {
	p, err := r.Get(pos)
	if err != nil {
		return "", err
	}
	if p.Species == nil {
		return fmt.Sprintf("Requested position: %d,\nbooking state: %t,\nno cultivated species", p.Position, p.Booked), nil
	}
	return fmt.Sprintf("Requested position: %d,\nbooking state: %t,\ncultivated species: %s", p.Position, p.Booked, *p.Species), nil
}

func (r *Registry) clone() []Position {
	next := make([]Position, len(r.positions))
	copy(next, r.positions)
	return next
}

func (r *Registry) persist(positions []Position) error {
	data, err := json.MarshalIndent(positions, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := renameio.WriteFile(r.path, data, 0o644); err != nil {
		persistFailures.Inc()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func normalizeSpecies(species *string) *string {
	if species == nil || *species == "" || *species == "None" {
		return nil
	}
	s := *species
	return &s
}

// Setup loads the registry from disk.
func (r *Registry) Setup() error { return r.Load() }

func (r *Registry) Start(context.Context) {}
func (r *Registry) Stop()                 {}
