package burst

import (
	"feagi/internal/model"
	"feagi/internal/npu"
)

// applyParameterUpdate applies one drained update to the engine, returning
// the number of neurons affected. Unknown names and out-of-domain values are
// skipped with a zero count; a malformed single update must never abort the
// batch. Caller holds the engine lock.
func applyParameterUpdate(eng npu.Engine, u model.ParameterUpdate) int {
	if !u.Valid() {
		return 0
	}
	switch u.Name {
	case model.ParamFiringThreshold:
		return eng.SetFiringThreshold(u.CorticalIdx, float32(u.Number))
	case model.ParamRefractoryPeriod:
		return eng.SetRefractoryPeriod(u.CorticalIdx, uint16(u.Number))
	case model.ParamLeakCoefficient:
		return eng.SetLeakCoefficient(u.CorticalIdx, float32(u.Number))
	case model.ParamConsecutiveFireLimit:
		return eng.SetConsecutiveFireLimit(u.CorticalIdx, uint16(u.Number))
	case model.ParamSnoozePeriod:
		return eng.SetSnoozePeriod(u.CorticalIdx, uint16(u.Number))
	case model.ParamExcitability:
		return eng.SetExcitability(u.CorticalIdx, float32(u.Number))
	case model.ParamChargeAccumulation:
		return eng.SetChargeAccumulation(u.CorticalIdx, u.Flag)
	default:
		return 0
	}
}
