package fanout

import (
	"context"
	"sync"
	"time"

	"feagi/internal/logging"
	"feagi/internal/model"
	"feagi/internal/storage"
)

// DefaultVizThrottle caps visualization publishing at ~30 Hz regardless of
// tick frequency.
const DefaultVizThrottle = 33 * time.Millisecond

// Fanout drives the two best-effort output channels from the per-tick fire
// snapshot: the rate-throttled whole-connectome visualization stream and the
// per-agent subscription-filtered motor stream. Publish failures are logged
// and never propagate to the tick or to the other channel.
//
// Dispatch and NeedsSample are called only from the scheduler goroutine;
// subscription registration may happen from any goroutine.
type Fanout struct {
	viz   VisualizationPublisher
	motor MotorPublisher
	store storage.SnapshotStore
	log   *logging.Logger

	vizThrottle time.Duration
	// lastVizPublish is owned by the scheduler goroutine.
	lastVizPublish time.Time

	subsMu sync.RWMutex
	subs   map[string]map[model.CorticalID]struct{}
}

type Options struct {
	Viz         VisualizationPublisher
	Motor       MotorPublisher
	Store       storage.SnapshotStore
	VizThrottle time.Duration
	Log         *logging.Logger
}

func New(opts Options) *Fanout {
	if opts.VizThrottle <= 0 {
		opts.VizThrottle = DefaultVizThrottle
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return &Fanout{
		viz:         opts.Viz,
		motor:       opts.Motor,
		store:       opts.Store,
		log:         opts.Log,
		vizThrottle: opts.VizThrottle,
		subs:        make(map[string]map[model.CorticalID]struct{}),
	}
}

// RegisterSubscriptions replaces the motor subscription set for an agent.
func (f *Fanout) RegisterSubscriptions(agentID string, areas []model.CorticalID) {
	set := make(map[model.CorticalID]struct{}, len(areas))
	for _, a := range areas {
		set[a] = struct{}{}
	}
	f.subsMu.Lock()
	f.subs[agentID] = set
	f.subsMu.Unlock()
	f.log.Infof("registered motor subscriptions for agent %s: %d areas", agentID, len(set))
}

// UnregisterSubscriptions removes an agent's motor subscriptions.
func (f *Fanout) UnregisterSubscriptions(agentID string) {
	f.subsMu.Lock()
	_, existed := f.subs[agentID]
	delete(f.subs, agentID)
	f.subsMu.Unlock()
	if existed {
		f.log.Infof("removed motor subscriptions for agent %s", agentID)
	}
}

// Subscribers returns the agent IDs with a registered motor subscription.
func (f *Fanout) Subscribers() int {
	f.subsMu.RLock()
	defer f.subsMu.RUnlock()
	return len(f.subs)
}

func (f *Fanout) vizDue(now time.Time) bool {
	return (f.viz != nil || f.store != nil) && now.Sub(f.lastVizPublish) >= f.vizThrottle
}

func (f *Fanout) motorNeeded() bool {
	if f.motor == nil {
		return false
	}
	f.subsMu.RLock()
	defer f.subsMu.RUnlock()
	return len(f.subs) > 0
}

// NeedsSample reports whether any consumer wants fire data this tick. The
// scheduler skips the sampling lock entirely when this is false.
func (f *Fanout) NeedsSample(now time.Time) bool {
	return f.vizDue(now) || f.motorNeeded()
}

// Dispatch publishes one tick's snapshot to every consumer that is due. The
// snapshot is shared by reference between channels and must not be retained
// by Dispatch past its return.
func (f *Fanout) Dispatch(ctx context.Context, burst uint64, snapshot model.FireSnapshot, now time.Time) {
	if len(snapshot) == 0 {
		return
	}
	if f.vizDue(now) {
		f.lastVizPublish = now
		f.dispatchViz(ctx, burst, snapshot)
	}
	f.dispatchMotor(snapshot)
}

func (f *Fanout) dispatchViz(ctx context.Context, burst uint64, snapshot model.FireSnapshot) {
	if f.viz != nil {
		if err := f.viz.PublishRawFireQueue(snapshot); err != nil {
			f.log.Errorf("viz publish failed at burst %d: %v", burst, err)
		}
	}
	if f.store == nil {
		return
	}
	payload, err := EncodeXYZP(snapshot, nil)
	if err != nil {
		f.log.Errorf("viz snapshot encode failed at burst %d: %v", burst, err)
		return
	}
	rec := storage.SnapshotRecord{
		BurstNumber: burst,
		CapturedAt:  time.Now(),
		AreaCount:   len(snapshot),
		NeuronCount: snapshot.NeuronCount(),
		Payload:     payload,
	}
	if err := f.store.SaveSnapshot(ctx, rec); err != nil {
		f.log.Warnf("snapshot store write failed at burst %d: %v", burst, err)
	}
}

func (f *Fanout) dispatchMotor(snapshot model.FireSnapshot) {
	if f.motor == nil {
		return
	}

	f.subsMu.RLock()
	agents := make(map[string]map[model.CorticalID]struct{}, len(f.subs))
	for id, set := range f.subs {
		agents[id] = set
	}
	f.subsMu.RUnlock()

	for agentID, filter := range agents {
		if len(filter) == 0 {
			continue
		}
		payload, err := EncodeXYZP(snapshot, filter)
		if err != nil {
			f.log.Errorf("motor encode failed for agent %s: %v", agentID, err)
			continue
		}
		// No subscribed area fired this tick: silence, not an empty message.
		if len(payload) == 0 {
			continue
		}
		if err := f.motor.PublishMotor(agentID, payload); err != nil {
			f.log.Errorf("motor publish failed for agent %s: %v", agentID, err)
		}
	}
}
