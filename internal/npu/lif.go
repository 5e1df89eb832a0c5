package npu

import (
	"feagi/internal/model"
)

// lifEngine is the reference leaky integrate-and-fire engine. One instance
// per runtime; the burst loop serializes all access through npu.Shared, so
// no internal locking is needed here.
type lifEngine struct {
	topo      *topology
	precision Precision
	store     potentialStore

	burst uint64

	// Per-neuron dynamic state outside the potential store.
	refractoryUntil []uint64
	snoozeUntil     []uint64
	consecutive     []uint16

	// Fire candidate list: neurons stimulated since the last tick, in
	// arrival order. inFCL keeps membership checks O(1).
	fcl   []model.NeuronID
	inFCL []bool
}

func newLIFEngine(topo *topology, precision Precision, store potentialStore) *lifEngine {
	n := topo.neuronCount
	return &lifEngine{
		topo:            topo,
		precision:       precision,
		store:           store,
		refractoryUntil: make([]uint64, n),
		snoozeUntil:     make([]uint64, n),
		consecutive:     make([]uint16, n),
		inFCL:           make([]bool, n),
	}
}

func (e *lifEngine) Precision() Precision { return e.precision }
func (e *lifEngine) BurstCount() uint64   { return e.burst }
func (e *lifEngine) AreaCount() int       { return len(e.topo.areas) }
func (e *lifEngine) NeuronCount() int     { return e.topo.neuronCount }

func (e *lifEngine) AreaIndex(id model.CorticalID) (model.AreaIndex, bool) {
	idx, ok := e.topo.byID[id]
	return idx, ok
}

func (e *lifEngine) CorticalID(area model.AreaIndex) (model.CorticalID, bool) {
	a, ok := e.topo.area(area)
	if !ok {
		return "", false
	}
	return a.id, true
}

func (e *lifEngine) BatchNeuronIDs(area model.AreaIndex, coords []model.Coordinate) []model.NeuronID {
	ids := make([]model.NeuronID, len(coords))
	for i, c := range coords {
		id, ok := e.topo.neuronAt(area, c)
		if !ok {
			ids[i] = model.InvalidNeuron
			continue
		}
		ids[i] = id
	}
	return ids
}

func (e *lifEngine) InjectSensory(pairs []model.NeuronPotential) {
	for _, p := range pairs {
		if int(p.ID) >= e.topo.neuronCount {
			continue
		}
		e.stimulate(p.ID, p.Potential)
	}
}

func (e *lifEngine) stimulate(id model.NeuronID, potential float32) {
	e.store.add(int(id), potential)
	if !e.inFCL[id] {
		e.inFCL[id] = true
		e.fcl = append(e.fcl, id)
	}
}

// ProcessBurst advances the connectome one tick: every candidate neuron is
// leaked, checked against its area threshold, and on fire has its potential
// propagated along outgoing synapses into the next tick's candidate list.
func (e *lifEngine) ProcessBurst() (BurstResult, error) {
	e.burst++

	candidates := e.fcl
	e.fcl = nil

	type firedNeuron struct {
		id        model.NeuronID
		potential float32
	}
	var fired []firedNeuron

	for _, id := range candidates {
		e.inFCL[id] = false
		area := &e.topo.areas[e.topo.areaOf[id]]
		n := int(id)

		if e.burst < e.snoozeUntil[id] || e.burst < e.refractoryUntil[id] {
			if !area.accumulate {
				e.store.reset(n)
			}
			continue
		}

		e.store.decay(n, area.leak)
		potential := e.store.get(n)

		if potential*area.excitability >= area.threshold {
			fired = append(fired, firedNeuron{id: id, potential: potential})
			e.store.reset(n)
			if area.refractory > 0 {
				// refractory=1: fire, block exactly one burst, fire again.
				e.refractoryUntil[id] = e.burst + uint64(area.refractory) + 1
			}
			e.consecutive[id]++
			if area.fireLimit > 0 && e.consecutive[id] >= area.fireLimit {
				if area.snooze > 0 {
					e.snoozeUntil[id] = e.burst + uint64(area.snooze) + 1
				}
				e.consecutive[id] = 0
			}
			continue
		}

		e.consecutive[id] = 0
		if !area.accumulate {
			e.store.reset(n)
		} else if e.store.get(n) != 0 {
			// Accumulating sub-threshold charge keeps the neuron a candidate.
			e.inFCL[id] = true
			e.fcl = append(e.fcl, id)
		}
	}

	// Synaptic propagation lands in the next tick's candidate list.
	for _, f := range fired {
		for _, syn := range e.topo.edges[f.id] {
			e.stimulate(syn.To, syn.Weight*f.potential)
		}
	}

	result := BurstResult{FiredCount: len(fired)}
	if len(fired) > 0 {
		sample := make(model.FireSnapshot)
		for _, f := range fired {
			areaIdx := e.topo.areaOf[f.id]
			entry, ok := sample[areaIdx]
			if !ok {
				entry = &model.AreaFire{
					AreaIdx:    areaIdx,
					CorticalID: e.topo.areas[areaIdx].id,
				}
				sample[areaIdx] = entry
			}
			c := e.topo.coords[f.id]
			entry.NeuronIDs = append(entry.NeuronIDs, uint32(f.id))
			entry.X = append(entry.X, c.X)
			entry.Y = append(entry.Y, c.Y)
			entry.Z = append(entry.Z, c.Z)
			entry.Potentials = append(entry.Potentials, f.potential)
		}
		result.Sample = sample
	}
	return result, nil
}

func (e *lifEngine) SetFiringThreshold(area model.AreaIndex, v float32) int {
	a, ok := e.topo.area(area)
	if !ok || v <= 0 {
		return 0
	}
	a.threshold = v
	return a.count
}

func (e *lifEngine) SetRefractoryPeriod(area model.AreaIndex, v uint16) int {
	a, ok := e.topo.area(area)
	if !ok {
		return 0
	}
	a.refractory = v
	return a.count
}

func (e *lifEngine) SetLeakCoefficient(area model.AreaIndex, v float32) int {
	a, ok := e.topo.area(area)
	if !ok || v < 0 || v > 1 {
		return 0
	}
	a.leak = v
	return a.count
}

func (e *lifEngine) SetConsecutiveFireLimit(area model.AreaIndex, v uint16) int {
	a, ok := e.topo.area(area)
	if !ok {
		return 0
	}
	a.fireLimit = v
	return a.count
}

func (e *lifEngine) SetSnoozePeriod(area model.AreaIndex, v uint16) int {
	a, ok := e.topo.area(area)
	if !ok {
		return 0
	}
	a.snooze = v
	return a.count
}

func (e *lifEngine) SetExcitability(area model.AreaIndex, v float32) int {
	a, ok := e.topo.area(area)
	if !ok || v < 0 || v > 1 {
		return 0
	}
	a.excitability = v
	return a.count
}

func (e *lifEngine) SetChargeAccumulation(area model.AreaIndex, enabled bool) int {
	a, ok := e.topo.area(area)
	if !ok {
		return 0
	}
	a.accumulate = enabled
	return a.count
}
