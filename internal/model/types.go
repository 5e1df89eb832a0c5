package model

// AreaIndex is the dense internal index of a cortical area inside the
// connectome. Index values are assigned at connectome construction time and
// stay stable for the lifetime of the engine.
type AreaIndex uint32

// CorticalID is the symbolic identifier of a cortical area (e.g. "omot00").
// Agents subscribe to and inject into areas by cortical ID; the engine works
// with area indexes internally.
type CorticalID string

// NeuronID identifies a neuron inside the engine's flat neuron array.
type NeuronID uint32

// InvalidNeuron marks a coordinate that resolved to no neuron.
const InvalidNeuron NeuronID = ^NeuronID(0)

// Coordinate is a voxel address inside a cortical area.
type Coordinate struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
	Z uint32 `json:"z"`
}

// XYZP is a voxel coordinate with an associated membrane potential, the unit
// of sensory injection and motor output.
type XYZP struct {
	X         uint32  `json:"x"`
	Y         uint32  `json:"y"`
	Z         uint32  `json:"z"`
	Potential float32 `json:"p"`
}

// NeuronPotential pairs a resolved neuron with the potential to inject.
type NeuronPotential struct {
	ID        NeuronID
	Potential float32
}

// SensoryFrame is one decoded read from an agent's private data channel:
// all injected voxels for a single cortical area.
type SensoryFrame struct {
	Area   CorticalID
	Points []XYZP
}

// AreaFire holds the neurons of one cortical area that crossed threshold
// during a tick, as parallel slices.
type AreaFire struct {
	AreaIdx    AreaIndex  `json:"area_idx"`
	CorticalID CorticalID `json:"cortical_id"`
	NeuronIDs  []uint32   `json:"neuron_ids"`
	X          []uint32   `json:"x"`
	Y          []uint32   `json:"y"`
	Z          []uint32   `json:"z"`
	Potentials []float32  `json:"potentials"`
}

// Len reports the number of fired neurons in the area.
func (a *AreaFire) Len() int {
	if a == nil {
		return 0
	}
	return len(a.NeuronIDs)
}

// FireSnapshot is the per-tick fire queue sample: every area with at least
// one fired neuron. It is produced at most once per tick and shared by
// pointer between output consumers; it must never be retained across ticks.
type FireSnapshot map[AreaIndex]*AreaFire

// NeuronCount sums fired neurons across all areas.
func (s FireSnapshot) NeuronCount() int {
	total := 0
	for _, area := range s {
		total += area.Len()
	}
	return total
}

// AgentConfig describes a registered sensory-producing agent.
type AgentConfig struct {
	AgentID string `json:"agent_id"`
	// RateHz is the polling rate of the agent's injector goroutine.
	RateHz float64 `json:"rate_hz"`
	// AreaMapping resolves the cortical IDs carried in the agent's frames to
	// engine area indexes.
	AreaMapping map[CorticalID]AreaIndex `json:"area_mapping"`
}
