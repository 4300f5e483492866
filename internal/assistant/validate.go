package assistant

import (
	"encoding/json"

	"github.com/joelkehle/cip-designer/internal/cip"
)

const (
	WarnLowFlow    = "Flow rate below 30 GPM may result in poor cleaning efficiency"
	WarnHighFlow   = "Flow rate above 60 GPM may cause membrane damage"
	WarnHighTemp   = "Target temperature above 45°C may damage RO membranes"
	WarnStageRatio = "Consider optimizing stage 1:stage 2 vessel ratio (typically 1.2-2.0:1)"
)

// Parameters are the loosely typed values a form submits for review. A zero
// value means the field was absent or not a number and is not checked.
type Parameters struct {
	PerVesselFlowGPM float64
	TargetTempC      float64
	VesselsStage1    float64
	VesselsStage2    float64
}

// ParseParameters picks the numeric fields out of an arbitrary JSON object.
// Anything else, including malformed JSON, yields zero values.
func ParseParameters(raw json.RawMessage) Parameters {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Parameters{}
	}
	num := func(key string) float64 {
		v, _ := fields[key].(float64)
		return v
	}
	return Parameters{
		PerVesselFlowGPM: num("perVesselFlowGPM"),
		TargetTempC:      num("targetTempC"),
		VesselsStage1:    num("vesselsStage1"),
		VesselsStage2:    num("vesselsStage2"),
	}
}

// ValidateParameters returns advisory warnings. Only cip-ro has rules; other
// system types always get an empty list.
func ValidateParameters(p Parameters, systemType string) []string {
	warnings := []string{}
	if systemType != cip.SystemType {
		return warnings
	}

	if p.PerVesselFlowGPM != 0 {
		if p.PerVesselFlowGPM < 30 {
			warnings = append(warnings, WarnLowFlow)
		}
		if p.PerVesselFlowGPM > 60 {
			warnings = append(warnings, WarnHighFlow)
		}
	}
	if p.TargetTempC > 45 {
		warnings = append(warnings, WarnHighTemp)
	}
	if p.VesselsStage1 != 0 && p.VesselsStage2 != 0 {
		ratio := p.VesselsStage1 / p.VesselsStage2
		if ratio < 1.2 || ratio > 2.0 {
			warnings = append(warnings, WarnStageRatio)
		}
	}
	return warnings
}
