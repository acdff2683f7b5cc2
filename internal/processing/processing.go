// Package processing turns raw agent samples into classified records.
package processing

import "roadwatch/internal/domain"

// Threshold values for the vertical-acceleration classifier, in raw
// accelerometer units. Each boundary belongs to the bucket above it.
const (
	deepPitLimit   = -2000
	smallPitLimit  = -1000
	goodRoadLimit  = 1000
	smallBumpLimit = 2000
)

// Classify maps a vertical acceleration reading to a road-state label.
// Only the z axis matters; x and y ride along in the record untouched.
func Classify(accelZ float64) domain.RoadState {
	switch {
	case accelZ < deepPitLimit:
		return domain.RoadStateDeepPits
	case accelZ < smallPitLimit:
		return domain.RoadStateSmallPits
	case accelZ < goodRoadLimit:
		return domain.RoadStateGoodRoad
	case accelZ < smallBumpLimit:
		return domain.RoadStateSmallBumps
	default:
		return domain.RoadStateLargeBumps
	}
}

// Process attaches the classifier's label to a raw sample. It never fails;
// callers validate the sample before handing it over.
func Process(raw domain.AgentData) domain.ProcessedAgentData {
	return domain.ProcessedAgentData{
		RoadState: Classify(raw.Accelerometer.Z),
		AgentData: raw,
	}
}
