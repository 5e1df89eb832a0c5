package sensory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"feagi/internal/logging"
	"feagi/internal/model"
	"feagi/internal/npu"
)

var (
	ErrAgentExists   = errors.New("agent already registered")
	ErrAgentNotFound = errors.New("agent not registered")
)

// Read-failure backoff bounds for injector loops.
const (
	initialReadBackoff = 10 * time.Millisecond
	maxReadBackoff     = 200 * time.Millisecond
)

// Manager owns one injector goroutine per registered sensory-producing
// agent. Each injector polls its agent's source at the configured rate and
// forwards decoded frames into the shared engine with the two-phase
// lookup-then-inject pattern, never blocking the simulation tick for longer
// than one batched lock acquisition.
type Manager struct {
	shared *npu.Shared
	log    *logging.Logger

	mu     sync.Mutex
	agents map[string]*injector
}

type injector struct {
	agentID string
	cancel  context.CancelFunc
	done    chan struct{}

	// injected counts neurons forwarded into the engine; it stops moving
	// once DeregisterAgent has returned.
	injected atomic.Uint64
}

func NewManager(shared *npu.Shared, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		shared: shared,
		log:    log,
		agents: make(map[string]*injector),
	}
}

// RegisterAgent spawns the injector goroutine for an agent and returns the
// agent ID (generated when cfg.AgentID is blank).
func (m *Manager) RegisterAgent(cfg model.AgentConfig, src Source) (string, error) {
	if src == nil {
		return "", errors.New("agent source is required")
	}
	if cfg.RateHz <= 0 {
		return "", fmt.Errorf("agent rate must be positive, got %v", cfg.RateHz)
	}
	if cfg.AgentID == "" {
		cfg.AgentID = uuid.NewString()
	}

	m.mu.Lock()
	if _, exists := m.agents[cfg.AgentID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrAgentExists, cfg.AgentID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	inj := &injector{
		agentID: cfg.AgentID,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.agents[cfg.AgentID] = inj
	m.mu.Unlock()

	go m.run(ctx, inj, cfg, src)

	m.log.Infof("registered agent %s at %.1f Hz (%d mapped areas)", cfg.AgentID, cfg.RateHz, len(cfg.AreaMapping))
	return cfg.AgentID, nil
}

// DeregisterAgent stops the agent's injector and joins it before returning,
// guaranteeing that no injection attributable to the agent happens after
// this call completes.
func (m *Manager) DeregisterAgent(agentID string) error {
	m.mu.Lock()
	inj, ok := m.agents[agentID]
	delete(m.agents, agentID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	inj.cancel()
	<-inj.done
	m.log.Infof("deregistered agent %s after %d injected neurons", agentID, inj.injected.Load())
	return nil
}

// Shutdown stops and joins every injector.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	agents := make([]*injector, 0, len(m.agents))
	for _, inj := range m.agents {
		agents = append(agents, inj)
	}
	m.agents = make(map[string]*injector)
	m.mu.Unlock()

	for _, inj := range agents {
		inj.cancel()
	}
	for _, inj := range agents {
		<-inj.done
	}
}

// Agents returns the IDs of currently registered agents.
func (m *Manager) Agents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.agents))
	for id := range m.agents {
		out = append(out, id)
	}
	return out
}

// InjectedCount reports how many neurons an agent's injector has forwarded.
func (m *Manager) InjectedCount(agentID string) (uint64, bool) {
	m.mu.Lock()
	inj, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	return inj.injected.Load(), true
}

func (m *Manager) run(ctx context.Context, inj *injector, cfg model.AgentConfig, src Source) {
	defer close(inj.done)

	limiter := newRateLimiter(cfg.RateHz)
	backoff := initialReadBackoff

	for {
		if !limiter.Wait(ctx) {
			return
		}

		frames, err := src.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.log.Warnf("agent %s read failed: %v", inj.agentID, err)
			// Back off instead of tearing the injector down; the channel may
			// recover (writer restart, transient decode error).
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			backoff *= 2
			if backoff > maxReadBackoff {
				backoff = maxReadBackoff
			}
			continue
		}
		backoff = initialReadBackoff

		for _, frame := range frames {
			if ctx.Err() != nil {
				return
			}
			m.injectFrame(inj, cfg, frame)
		}
	}
}

// injectFrame performs the two-phase forward of one frame: batch coordinate
// resolution under one short lock, pair building with no lock held, then one
// batched injection. Resolution over thousands of coordinates must not
// serialize against the simulation tick.
func (m *Manager) injectFrame(inj *injector, cfg model.AgentConfig, frame model.SensoryFrame) {
	if len(frame.Points) == 0 {
		return
	}
	areaIdx, ok := cfg.AreaMapping[frame.Area]
	if !ok {
		m.log.Debugf("agent %s: no mapping for area %s, frame dropped", inj.agentID, frame.Area)
		return
	}

	coords := make([]model.Coordinate, len(frame.Points))
	for i, p := range frame.Points {
		coords[i] = model.Coordinate{X: p.X, Y: p.Y, Z: p.Z}
	}

	ids := m.shared.BatchNeuronIDs(areaIdx, coords)

	pairs := make([]model.NeuronPotential, 0, len(ids))
	for i, id := range ids {
		if id == model.InvalidNeuron {
			continue
		}
		pairs = append(pairs, model.NeuronPotential{ID: id, Potential: frame.Points[i].Potential})
	}
	if len(pairs) == 0 {
		return
	}

	m.shared.InjectSensory(pairs)
	inj.injected.Add(uint64(len(pairs)))
}
