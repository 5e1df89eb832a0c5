package model

import (
	"fmt"
	"math"
)

// ParameterName enumerates the cortical-area physiology parameters that can
// be changed at runtime through the update queue.
type ParameterName string

const (
	ParamFiringThreshold      ParameterName = "firing_threshold"
	ParamRefractoryPeriod     ParameterName = "refractory_period"
	ParamLeakCoefficient      ParameterName = "leak_coefficient"
	ParamConsecutiveFireLimit ParameterName = "consecutive_fire_limit"
	ParamSnoozePeriod         ParameterName = "snooze_period"
	ParamExcitability         ParameterName = "excitability"
	ParamChargeAccumulation   ParameterName = "mp_charge_accumulation"
)

// parameterAliases maps every accepted spelling to its canonical name. The
// genome format and older API clients use several spellings for the same
// physiology field.
var parameterAliases = map[string]ParameterName{
	"firing_threshold":              ParamFiringThreshold,
	"neuron_fire_threshold":         ParamFiringThreshold,
	"refractory_period":             ParamRefractoryPeriod,
	"neuron_refractory_period":      ParamRefractoryPeriod,
	"refrac":                        ParamRefractoryPeriod,
	"leak":                          ParamLeakCoefficient,
	"leak_coefficient":              ParamLeakCoefficient,
	"neuron_leak_coefficient":       ParamLeakCoefficient,
	"consecutive_fire_limit":        ParamConsecutiveFireLimit,
	"consecutive_fire_cnt_max":      ParamConsecutiveFireLimit,
	"neuron_consecutive_fire_count": ParamConsecutiveFireLimit,
	"snooze_period":                 ParamSnoozePeriod,
	"neuron_snooze_period":          ParamSnoozePeriod,
	"snooze_length":                 ParamSnoozePeriod,
	"excitability":                  ParamExcitability,
	"neuron_excitability":           ParamExcitability,
	"mp_charge_accumulation":        ParamChargeAccumulation,
	"neuron_mp_charge_accumulation": ParamChargeAccumulation,
}

// ParseParameterName resolves a symbolic parameter name, accepting aliases.
func ParseParameterName(name string) (ParameterName, error) {
	if canonical, ok := parameterAliases[name]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown parameter name: %s", name)
}

// ParameterUpdate is one pending runtime-parameter change. It is created by
// an API call, queued, applied exactly once at the start of the next tick,
// and then discarded. Updates are never coalesced; they apply in enqueue
// order.
type ParameterUpdate struct {
	CorticalIdx AreaIndex     `json:"cortical_idx"`
	CorticalID  CorticalID    `json:"cortical_id"`
	Name        ParameterName `json:"name"`
	// Number carries the value for numeric parameters, Flag for boolean ones.
	Number float64 `json:"number,omitempty"`
	Flag   bool    `json:"flag,omitempty"`
}

// Valid performs the domain check for the update's value. Out-of-domain
// values are skipped by the scheduler, never treated as errors.
func (u ParameterUpdate) Valid() bool {
	switch u.Name {
	case ParamFiringThreshold:
		return u.Number > 0
	case ParamRefractoryPeriod, ParamConsecutiveFireLimit, ParamSnoozePeriod:
		return u.Number >= 0 && u.Number <= math.MaxUint16 && u.Number == math.Trunc(u.Number)
	case ParamLeakCoefficient, ParamExcitability:
		return u.Number >= 0 && u.Number <= 1
	case ParamChargeAccumulation:
		return true
	default:
		return false
	}
}
