package feagi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feagi/internal/burst"
	"feagi/internal/fanout"
	"feagi/internal/logging"
	"feagi/internal/model"
	"feagi/internal/npu"
	"feagi/internal/sensory"
	"feagi/internal/storage"
)

const (
	defaultDBPath      = "feagi.db"
	defaultFrequencyHz = 10.0
)

// Options configures a Client. Zero values select the in-memory snapshot
// store, 10 Hz cadence and a nop logger.
type Options struct {
	StoreKind   string
	DBPath      string
	FrequencyHz float64
	VizThrottle time.Duration
	StopTimeout time.Duration

	Viz   fanout.VisualizationPublisher
	Motor fanout.MotorPublisher
	Log   *logging.Logger
}

// Client is the embedding surface of the simulation: one connectome, one
// burst loop, one set of agents. All methods may be called concurrently
// with a running loop.
type Client struct {
	store  storage.SnapshotStore
	shared *npu.Shared
	agents *sensory.Manager
	out    *fanout.Fanout
	runner *burst.Runner
	log    *logging.Logger
}

// AgentRequest registers one external agent. SensoryAreas lists the
// cortical IDs the agent injects into; MotorAreas the ones it wants motor
// output from. Either list may be empty.
type AgentRequest struct {
	AgentID      string
	RateHz       float64
	SensoryAreas []string
	MotorAreas   []string
}

// ParameterRequest changes one physiology parameter of one cortical area at
// the start of the next tick.
type ParameterRequest struct {
	Area      string
	Parameter string
	Value     float64
	Flag      bool
}

// StatusSummary is a point-in-time view of the simulation; all fields are
// read without touching the engine lock except the area/neuron totals,
// which are fixed at construction.
type StatusSummary struct {
	Running     bool
	FrequencyHz float64
	BurstCount  uint64
	FailedTicks uint64
	Agents      int
	Subscribers int
	AreaCount   int
	NeuronCount int
	Precision   string
}

type SnapshotsRequest struct {
	Limit  int
	Latest bool
}

type SnapshotItem struct {
	BurstNumber   uint64
	CapturedAtUTC string
	AreaCount     int
	NeuronCount   int
	PayloadBytes  int
	Frames        []model.SensoryFrame
}

// New builds a Client around the given connectome. The burst loop is not
// started; call Start.
func New(cfg npu.Config, opts Options) (*Client, error) {
	if opts.FrequencyHz == 0 {
		opts.FrequencyHz = defaultFrequencyHz
	}
	if opts.DBPath == "" {
		opts.DBPath = defaultDBPath
	}
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}

	eng, err := npu.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	shared := npu.NewShared(eng)

	out := fanout.New(fanout.Options{
		Viz:         opts.Viz,
		Motor:       opts.Motor,
		Store:       store,
		VizThrottle: opts.VizThrottle,
		Log:         log,
	})
	agents := sensory.NewManager(shared, log)

	runner, err := burst.NewRunner(burst.Options{
		Shared:      shared,
		Sensory:     agents,
		Output:      out,
		FrequencyHz: opts.FrequencyHz,
		StopTimeout: opts.StopTimeout,
		Log:         log,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		shared: shared,
		agents: agents,
		out:    out,
		runner: runner,
		log:    log,
	}, nil
}

// Init prepares the snapshot store. Must run before Start when a persistent
// backend is configured.
func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Start() error {
	return c.runner.Start()
}

func (c *Client) Stop() {
	c.runner.Stop()
}

// Close stops the loop, joins all injectors and releases the store.
func (c *Client) Close() error {
	c.runner.Close()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) IsRunning() bool {
	return c.runner.IsRunning()
}

func (c *Client) BurstCount() uint64 {
	return c.runner.BurstCount()
}

func (c *Client) Frequency() float64 {
	return c.runner.Frequency()
}

func (c *Client) SetFrequency(hz float64) error {
	return c.runner.SetFrequency(hz)
}

// UpdateParameter queues a physiology change for the next tick. Name
// aliases from legacy genome encodings are accepted; domain violations are
// rejected here rather than silently dropped at application time.
func (c *Client) UpdateParameter(req ParameterRequest) error {
	if req.Area == "" {
		return errors.New("cortical area is required")
	}
	name, err := model.ParseParameterName(req.Parameter)
	if err != nil {
		return err
	}
	areaIdx, ok := c.shared.AreaIndex(model.CorticalID(req.Area))
	if !ok {
		return fmt.Errorf("unknown cortical area: %s", req.Area)
	}
	update := model.ParameterUpdate{
		CorticalIdx: areaIdx,
		CorticalID:  model.CorticalID(req.Area),
		Name:        name,
		Number:      req.Value,
		Flag:        req.Flag,
	}
	if !update.Valid() {
		return fmt.Errorf("parameter %s: value out of domain", name)
	}
	c.runner.EnqueueParameterUpdate(update)
	return nil
}

// RegisterAgent starts the agent's sensory injector and registers its motor
// subscriptions atomically from the caller's point of view: on error
// nothing is registered.
func (c *Client) RegisterAgent(req AgentRequest, src sensory.Source) (string, error) {
	if req.RateHz <= 0 {
		return "", errors.New("agent rate must be positive")
	}
	if len(req.SensoryAreas) == 0 && len(req.MotorAreas) == 0 {
		return "", errors.New("agent must name at least one sensory or motor area")
	}
	if len(req.SensoryAreas) > 0 && src == nil {
		return "", errors.New("sensory agent requires a source")
	}

	mapping := make(map[model.CorticalID]model.AreaIndex, len(req.SensoryAreas))
	for _, area := range req.SensoryAreas {
		idx, ok := c.shared.AreaIndex(model.CorticalID(area))
		if !ok {
			return "", fmt.Errorf("unknown sensory area: %s", area)
		}
		mapping[model.CorticalID(area)] = idx
	}
	motor := make([]model.CorticalID, 0, len(req.MotorAreas))
	for _, area := range req.MotorAreas {
		if _, ok := c.shared.AreaIndex(model.CorticalID(area)); !ok {
			return "", fmt.Errorf("unknown motor area: %s", area)
		}
		motor = append(motor, model.CorticalID(area))
	}

	agentID := req.AgentID
	if len(mapping) > 0 {
		id, err := c.agents.RegisterAgent(model.AgentConfig{
			AgentID:     req.AgentID,
			RateHz:      req.RateHz,
			AreaMapping: mapping,
		}, src)
		if err != nil {
			return "", err
		}
		agentID = id
	}
	if agentID == "" {
		return "", errors.New("motor-only agent requires an explicit agent id")
	}
	if len(motor) > 0 {
		c.out.RegisterSubscriptions(agentID, motor)
	}
	return agentID, nil
}

// DeregisterAgent joins the agent's injector and drops its motor
// subscriptions. After it returns no injection or motor publication for the
// agent can happen.
func (c *Client) DeregisterAgent(agentID string) error {
	c.out.UnregisterSubscriptions(agentID)
	err := c.agents.DeregisterAgent(agentID)
	if errors.Is(err, sensory.ErrAgentNotFound) {
		// Motor-only agents have no injector.
		return nil
	}
	return err
}

func (c *Client) InjectedCount(agentID string) (uint64, bool) {
	return c.agents.InjectedCount(agentID)
}

func (c *Client) Status() StatusSummary {
	eng := c.shared.Lock()
	areaCount := eng.AreaCount()
	neuronCount := eng.NeuronCount()
	precision := string(eng.Precision())
	c.shared.Unlock()

	return StatusSummary{
		Running:     c.runner.IsRunning(),
		FrequencyHz: c.runner.Frequency(),
		BurstCount:  c.runner.BurstCount(),
		FailedTicks: c.runner.FailedTicks(),
		Agents:      len(c.agents.Agents()),
		Subscribers: c.out.Subscribers(),
		AreaCount:   areaCount,
		NeuronCount: neuronCount,
		Precision:   precision,
	}
}

// Snapshots lists persisted fire-queue snapshots, newest first, with their
// payloads decoded back into per-area frames.
func (c *Client) Snapshots(ctx context.Context, req SnapshotsRequest) ([]SnapshotItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	if req.Latest {
		req.Limit = 1
	}

	records, err := c.store.ListSnapshots(ctx, req.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]SnapshotItem, 0, len(records))
	for _, rec := range records {
		item := SnapshotItem{
			BurstNumber:   rec.BurstNumber,
			CapturedAtUTC: rec.CapturedAt.UTC().Format(time.RFC3339Nano),
			AreaCount:     rec.AreaCount,
			NeuronCount:   rec.NeuronCount,
			PayloadBytes:  len(rec.Payload),
		}
		frames, err := fanout.DecodeXYZP(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot at burst %d: %w", rec.BurstNumber, err)
		}
		item.Frames = frames
		out = append(out, item)
	}
	return out, nil
}

// PruneSnapshots keeps the newest keep snapshots and removes the rest.
func (c *Client) PruneSnapshots(ctx context.Context, keep int) error {
	if keep < 0 {
		return errors.New("keep must be >= 0")
	}
	return c.store.Prune(ctx, keep)
}
