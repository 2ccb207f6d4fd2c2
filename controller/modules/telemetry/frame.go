package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Fields is the number of readings the sensor board sends per cycle.
const Fields = 10

// Frame is one sensor cycle. Time is taken after the last field arrived.
type Frame struct {
	Values [Fields]float64 `json:"values"`
	Time   time.Time       `json:"time"`
}

// Channel describes one field of the frame. An empty File means the
// reading is captured but not kept in a rolling file.
type Channel struct {
	Index int    `json:"index" mapstructure:"index"`
	Name  string `json:"name" mapstructure:"name"`
	Label string `json:"label" mapstructure:"label"`
	File  string `json:"file" mapstructure:"file"`
	// Calibration is an optional expression over `value`, e.g.
	// "value * 1.02 - 0.3".
	Calibration string `json:"calibration,omitempty" mapstructure:"calibration"`
}

// DefaultChannels is the field order of the rig's sensor board.
func DefaultChannels() []Channel {
	return []Channel{
		{Index: 0, Name: "air_temperature", Label: "air temperature", File: "air_tmp.txt"},
		{Index: 1, Name: "water_temperature", Label: "water temperature", File: "water_tmp.txt"},
		{Index: 2, Name: "level_tank", Label: "level tank", File: "level_T.txt"},
		{Index: 3, Name: "level_floor_1", Label: "level 1", File: "level_1.txt"},
		{Index: 4, Name: "level_floor_2", Label: "level 2", File: "level_2.txt"},
		{Index: 5, Name: "humidity_floor_1", Label: "humidity 1", File: "humidity_1.txt"},
		{Index: 6, Name: "humidity_floor_2", Label: "humidity 2", File: "humidity_2.txt"},
		{Index: 7, Name: "ph_voltage", Label: "pH voltage", File: "pH_voltage.txt"},
		{Index: 8, Name: "ph", Label: "pH", File: "pH.txt"},
		{Index: 9, Name: "tds", Label: "tds", File: "EC.txt"},
	}
}

func validateChannels(channels []Channel) error {
	seen := map[string]bool{}
	files := map[string]bool{}
	for _, ch := range channels {
		if ch.Index < 0 || ch.Index >= Fields {
			return fmt.Errorf("channel %q: index %d outside frame", ch.Name, ch.Index)
		}
		if ch.Name == "" || seen[ch.Name] {
			return fmt.Errorf("channel %d: missing or duplicate name %q", ch.Index, ch.Name)
		}
		seen[ch.Name] = true
		if ch.File != "" {
			if files[ch.File] {
				return fmt.Errorf("channel %q: file %s used twice", ch.Name, ch.File)
			}
			files[ch.File] = true
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatValue renders a reading the way the plotting side expects: shortest
// form, with a trailing ".0" for whole numbers.
func formatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) {
		s += ".0"
	}
	return s
}
