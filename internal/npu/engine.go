package npu

import (
	"fmt"

	"feagi/internal/model"
)

// Precision selects the membrane-potential representation of the engine.
// The variant is chosen once, at construction time from the genome-declared
// precision; no call site re-dispatches afterwards.
type Precision string

const (
	PrecisionF32  Precision = "f32"
	PrecisionInt8 Precision = "int8"
)

// AreaConfig declares one cortical area of the connectome. Every voxel in
// the area's dimensions is materialized as one neuron.
type AreaConfig struct {
	CorticalID model.CorticalID `json:"cortical_id"`
	Dimensions model.Coordinate `json:"dimensions"`

	FiringThreshold      float32 `json:"firing_threshold"`
	RefractoryPeriod     uint16  `json:"refractory_period"`
	LeakCoefficient      float32 `json:"leak_coefficient"`
	ConsecutiveFireLimit uint16  `json:"consecutive_fire_limit"`
	SnoozePeriod         uint16  `json:"snooze_period"`
	Excitability         float32 `json:"excitability"`
	ChargeAccumulation   bool    `json:"mp_charge_accumulation"`
}

// Synapse connects two neurons; fired potential is propagated scaled by
// Weight into the target's next-tick stimulation.
type Synapse struct {
	From   model.NeuronID `json:"from"`
	To     model.NeuronID `json:"to"`
	Weight float32        `json:"weight"`
}

// Config assembles a connectome for the reference engine.
type Config struct {
	Precision Precision    `json:"precision"`
	Areas     []AreaConfig `json:"areas"`
	Synapses  []Synapse    `json:"synapses"`
}

// BurstResult reports one completed simulation step. Sample is the fire
// queue built while the engine lock was already held, so consumers never
// need a second lock acquisition to sample; it is nil when nothing fired.
type BurstResult struct {
	FiredCount int
	Sample     model.FireSnapshot
}

// Engine is the neural-processing-unit capability surface consumed by the
// burst loop. Callers serialize access through Shared; implementations need
// no internal locking.
type Engine interface {
	// ProcessBurst advances all neuron state by one tick.
	ProcessBurst() (BurstResult, error)
	// BatchNeuronIDs resolves voxel coordinates to neuron IDs for one area.
	// Unknown coordinates resolve to model.InvalidNeuron.
	BatchNeuronIDs(area model.AreaIndex, coords []model.Coordinate) []model.NeuronID
	// InjectSensory stimulates neurons ahead of the next tick.
	InjectSensory(pairs []model.NeuronPotential)
	// BurstCount returns the number of completed ticks.
	BurstCount() uint64

	AreaIndex(id model.CorticalID) (model.AreaIndex, bool)
	CorticalID(area model.AreaIndex) (model.CorticalID, bool)
	AreaCount() int
	NeuronCount() int
	Precision() Precision

	// Runtime parameter setters, each returning the number of neurons the
	// change affected (zero when the area does not exist).
	SetFiringThreshold(area model.AreaIndex, v float32) int
	SetRefractoryPeriod(area model.AreaIndex, v uint16) int
	SetLeakCoefficient(area model.AreaIndex, v float32) int
	SetConsecutiveFireLimit(area model.AreaIndex, v uint16) int
	SetSnoozePeriod(area model.AreaIndex, v uint16) int
	SetExcitability(area model.AreaIndex, v float32) int
	SetChargeAccumulation(area model.AreaIndex, enabled bool) int
}

// NewEngine builds the engine variant declared by cfg.Precision.
func NewEngine(cfg Config) (Engine, error) {
	if len(cfg.Areas) == 0 {
		return nil, fmt.Errorf("connectome requires at least one cortical area")
	}
	topo, err := buildTopology(cfg.Areas, cfg.Synapses)
	if err != nil {
		return nil, err
	}

	switch cfg.Precision {
	case "", PrecisionF32:
		return newLIFEngine(topo, PrecisionF32, newF32Store(topo.neuronCount)), nil
	case PrecisionInt8:
		return newLIFEngine(topo, PrecisionInt8, newInt8Store(topo.neuronCount)), nil
	default:
		return nil, fmt.Errorf("unsupported engine precision: %s", cfg.Precision)
	}
}
