package npu

import (
	"sync"
	"sync/atomic"

	"feagi/internal/model"
)

// Shared is the mutex-guarded handle to the simulation engine. It is the
// sole owner of durable neural state; every other component keeps only this
// handle and holds the lock for the shortest useful critical section.
//
// The burst-loop scheduler uses Lock/Unlock directly because parameter
// application and the burst step must share one critical section. Injector
// goroutines use the batch helpers below, which each take the lock for a
// single short operation (the two-phase lookup-then-inject pattern).
type Shared struct {
	mu  sync.Mutex
	eng Engine

	// burstCount mirrors the engine's tick counter so readers never touch
	// the engine lock. Refreshed by the scheduler after every tick.
	burstCount atomic.Uint64
}

func NewShared(eng Engine) *Shared {
	return &Shared{eng: eng}
}

// Lock acquires the engine lock and returns the engine for direct use.
// Callers must not retain the engine past Unlock.
func (s *Shared) Lock() Engine {
	s.mu.Lock()
	return s.eng
}

func (s *Shared) Unlock() {
	s.mu.Unlock()
}

// RefreshBurstCount copies the engine's tick counter into the lock-free
// cache. Must be called with the lock held.
func (s *Shared) RefreshBurstCount() {
	s.burstCount.Store(s.eng.BurstCount())
}

// BurstCount returns the cached tick counter without blocking.
func (s *Shared) BurstCount() uint64 {
	return s.burstCount.Load()
}

// AreaIndex resolves a cortical ID under a short lock acquisition.
func (s *Shared) AreaIndex(id model.CorticalID) (model.AreaIndex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.AreaIndex(id)
}

// BatchNeuronIDs resolves coordinates under one short lock acquisition and
// releases the lock before returning. Injectors call this, drop the lock,
// build their pairs, and only then inject.
func (s *Shared) BatchNeuronIDs(area model.AreaIndex, coords []model.Coordinate) []model.NeuronID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.BatchNeuronIDs(area, coords)
}

// InjectSensory performs one batched injection under one short lock
// acquisition. Visibility: an injection completing after tick N releases
// the lock is observed by tick N+1.
func (s *Shared) InjectSensory(pairs []model.NeuronPotential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng.InjectSensory(pairs)
}
