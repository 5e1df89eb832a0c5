package npu

import (
	"fmt"

	"feagi/internal/model"
)

// areaState carries the per-area layout plus the mutable physiology
// parameters the update queue targets.
type areaState struct {
	id   model.CorticalID
	dims model.Coordinate

	// Neuron range [start, start+count) in the flat neuron arrays.
	start int
	count int

	threshold    float32
	refractory   uint16
	leak         float32
	fireLimit    uint16
	snooze       uint16
	excitability float32
	accumulate   bool
}

func (a *areaState) voxelIndex(c model.Coordinate) (int, bool) {
	if c.X >= a.dims.X || c.Y >= a.dims.Y || c.Z >= a.dims.Z {
		return 0, false
	}
	return int(c.X + a.dims.X*(c.Y+a.dims.Y*c.Z)), true
}

type topology struct {
	areas       []areaState
	byID        map[model.CorticalID]model.AreaIndex
	neuronCount int

	// Per-neuron reverse lookup.
	areaOf []model.AreaIndex
	coords []model.Coordinate

	// Outgoing synapses per neuron.
	edges [][]Synapse
}

func buildTopology(areaCfgs []AreaConfig, synapses []Synapse) (*topology, error) {
	topo := &topology{
		areas: make([]areaState, 0, len(areaCfgs)),
		byID:  make(map[model.CorticalID]model.AreaIndex, len(areaCfgs)),
	}

	offset := 0
	for i, cfg := range areaCfgs {
		if cfg.CorticalID == "" {
			return nil, fmt.Errorf("area %d: cortical id is required", i)
		}
		if _, exists := topo.byID[cfg.CorticalID]; exists {
			return nil, fmt.Errorf("duplicate cortical id: %s", cfg.CorticalID)
		}
		d := cfg.Dimensions
		if d.X == 0 || d.Y == 0 || d.Z == 0 {
			return nil, fmt.Errorf("area %s: dimensions must be non-zero", cfg.CorticalID)
		}
		count := int(d.X) * int(d.Y) * int(d.Z)

		area := areaState{
			id:           cfg.CorticalID,
			dims:         d,
			start:        offset,
			count:        count,
			threshold:    cfg.FiringThreshold,
			refractory:   cfg.RefractoryPeriod,
			leak:         cfg.LeakCoefficient,
			fireLimit:    cfg.ConsecutiveFireLimit,
			snooze:       cfg.SnoozePeriod,
			excitability: cfg.Excitability,
			accumulate:   cfg.ChargeAccumulation,
		}
		if area.threshold <= 0 {
			area.threshold = 1
		}
		if area.excitability <= 0 {
			area.excitability = 1
		}

		topo.byID[cfg.CorticalID] = model.AreaIndex(i)
		topo.areas = append(topo.areas, area)
		offset += count
	}
	topo.neuronCount = offset

	topo.areaOf = make([]model.AreaIndex, offset)
	topo.coords = make([]model.Coordinate, offset)
	for i := range topo.areas {
		a := &topo.areas[i]
		n := a.start
		for z := uint32(0); z < a.dims.Z; z++ {
			for y := uint32(0); y < a.dims.Y; y++ {
				for x := uint32(0); x < a.dims.X; x++ {
					topo.areaOf[n] = model.AreaIndex(i)
					topo.coords[n] = model.Coordinate{X: x, Y: y, Z: z}
					n++
				}
			}
		}
	}

	topo.edges = make([][]Synapse, offset)
	for _, syn := range synapses {
		if int(syn.From) >= offset || int(syn.To) >= offset {
			return nil, fmt.Errorf("synapse %d->%d references unknown neuron", syn.From, syn.To)
		}
		topo.edges[syn.From] = append(topo.edges[syn.From], syn)
	}

	return topo, nil
}

func (t *topology) area(idx model.AreaIndex) (*areaState, bool) {
	if int(idx) >= len(t.areas) {
		return nil, false
	}
	return &t.areas[idx], true
}

// neuronAt resolves one voxel coordinate inside an area. The connectome is
// dense, so resolution is pure index math (the batch lookup over thousands
// of coordinates must stay cheap; it runs under the shared lock).
func (t *topology) neuronAt(idx model.AreaIndex, c model.Coordinate) (model.NeuronID, bool) {
	area, ok := t.area(idx)
	if !ok {
		return model.InvalidNeuron, false
	}
	voxel, ok := area.voxelIndex(c)
	if !ok {
		return model.InvalidNeuron, false
	}
	return model.NeuronID(area.start + voxel), true
}
