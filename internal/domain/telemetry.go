package domain

import (
	"fmt"
	"math"
	"time"
)

// RoadState labels the inferred road-surface condition for one sample.
type RoadState string

const (
	RoadStateDeepPits   RoadState = "deep pits (poor)"
	RoadStateSmallPits  RoadState = "small pits (fair)"
	RoadStateGoodRoad   RoadState = "good road (good)"
	RoadStateSmallBumps RoadState = "small bumps (fair)"
	RoadStateLargeBumps RoadState = "large bumps (poor)"
)

// Valid reports whether the value is one of the five known labels.
func (r RoadState) Valid() bool {
	switch r {
	case RoadStateDeepPits, RoadStateSmallPits, RoadStateGoodRoad,
		RoadStateSmallBumps, RoadStateLargeBumps:
		return true
	}
	return false
}

// Accelerometer is one three-axis acceleration reading.
type Accelerometer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Gps is one position fix.
type Gps struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AgentData is a raw sensor sample as produced by a vehicle agent.
type AgentData struct {
	UserID        int           `json:"user_id"`
	Accelerometer Accelerometer `json:"accelerometer"`
	Gps           Gps           `json:"gps"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Validate rejects samples that cannot be classified or persisted.
func (a AgentData) Validate() error {
	if a.Timestamp.IsZero() {
		return fmt.Errorf("sample timestamp is missing")
	}
	for name, v := range map[string]float64{
		"accelerometer.x": a.Accelerometer.X,
		"accelerometer.y": a.Accelerometer.Y,
		"accelerometer.z": a.Accelerometer.Z,
		"gps.latitude":    a.Gps.Latitude,
		"gps.longitude":   a.Gps.Longitude,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", name)
		}
	}
	return nil
}

// ProcessedAgentData is a raw sample tagged with its road-state label.
// Immutable once built.
type ProcessedAgentData struct {
	RoadState RoadState `json:"road_state"`
	AgentData AgentData `json:"agent_data"`
}

// StoredAgentData is the persisted, flattened row shape, including the
// store-assigned identifier. It is also the wire form pushed to stream
// subscribers and returned by the read endpoints.
type StoredAgentData struct {
	ID        int64     `json:"id"`
	UserID    int       `json:"user_id"`
	RoadState RoadState `json:"road_state"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStored flattens a processed record under the identifier the store
// assigned to it.
func NewStored(id int64, p ProcessedAgentData) StoredAgentData {
	return StoredAgentData{
		ID:        id,
		UserID:    p.AgentData.UserID,
		RoadState: p.RoadState,
		X:         p.AgentData.Accelerometer.X,
		Y:         p.AgentData.Accelerometer.Y,
		Z:         p.AgentData.Accelerometer.Z,
		Latitude:  p.AgentData.Gps.Latitude,
		Longitude: p.AgentData.Gps.Longitude,
		Timestamp: p.AgentData.Timestamp,
	}
}

// Processed reconstructs the nested processed-record form from a stored row.
func (s StoredAgentData) Processed() ProcessedAgentData {
	return ProcessedAgentData{
		RoadState: s.RoadState,
		AgentData: AgentData{
			UserID:        s.UserID,
			Accelerometer: Accelerometer{X: s.X, Y: s.Y, Z: s.Z},
			Gps:           Gps{Latitude: s.Latitude, Longitude: s.Longitude},
			Timestamp:     s.Timestamp,
		},
	}
}
