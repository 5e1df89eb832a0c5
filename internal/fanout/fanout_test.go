package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"feagi/internal/model"
	"feagi/internal/storage"
)

type fakeViz struct {
	calls int
	err   error
}

func (f *fakeViz) PublishRawFireQueue(snapshot model.FireSnapshot) error {
	f.calls++
	return f.err
}

type fakeMotor struct {
	published map[string][][]byte
	err       error
}

func newFakeMotor() *fakeMotor {
	return &fakeMotor{published: make(map[string][][]byte)}
}

func (f *fakeMotor) PublishMotor(agentID string, data []byte) error {
	f.published[agentID] = append(f.published[agentID], data)
	return f.err
}

func TestDispatchThrottlesVisualization(t *testing.T) {
	viz := &fakeViz{}
	f := New(Options{Viz: viz, VizThrottle: 100 * time.Millisecond})

	base := time.Now()
	f.Dispatch(context.Background(), 1, sampleSnapshot(), base)
	if viz.calls != 1 {
		t.Fatalf("expected first dispatch to publish, got %d calls", viz.calls)
	}

	// Inside the throttle window: skipped.
	f.Dispatch(context.Background(), 2, sampleSnapshot(), base.Add(10*time.Millisecond))
	if viz.calls != 1 {
		t.Fatalf("expected throttled dispatch to skip, got %d calls", viz.calls)
	}

	f.Dispatch(context.Background(), 3, sampleSnapshot(), base.Add(110*time.Millisecond))
	if viz.calls != 2 {
		t.Fatalf("expected dispatch past throttle to publish, got %d calls", viz.calls)
	}
}

func TestNeedsSample(t *testing.T) {
	now := time.Now()

	// No consumers at all.
	f := New(Options{})
	if f.NeedsSample(now) {
		t.Fatal("expected no sample needed without consumers")
	}

	// Viz attached and due.
	f = New(Options{Viz: &fakeViz{}, VizThrottle: 100 * time.Millisecond})
	if !f.NeedsSample(now) {
		t.Fatal("expected sample needed for due viz")
	}
	f.Dispatch(context.Background(), 1, sampleSnapshot(), now)
	if f.NeedsSample(now.Add(10 * time.Millisecond)) {
		t.Fatal("expected no sample needed inside throttle window")
	}

	// Motor subscriptions force sampling regardless of the viz throttle.
	f = New(Options{Motor: newFakeMotor()})
	if f.NeedsSample(now) {
		t.Fatal("expected no sample needed without subscribers")
	}
	f.RegisterSubscriptions("agent-1", []model.CorticalID{"omot00"})
	if !f.NeedsSample(now) {
		t.Fatal("expected sample needed with motor subscriber")
	}
	f.UnregisterSubscriptions("agent-1")
	if f.NeedsSample(now) {
		t.Fatal("expected no sample needed after unregistration")
	}
}

func TestDispatchMotorFiltersBySubscription(t *testing.T) {
	motor := newFakeMotor()
	f := New(Options{Motor: motor})

	f.RegisterSubscriptions("motor-agent", []model.CorticalID{"omot00"})
	f.RegisterSubscriptions("elsewhere", []model.CorticalID{"oarm00"})
	if f.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", f.Subscribers())
	}

	f.Dispatch(context.Background(), 1, sampleSnapshot(), time.Now())

	got := motor.published["motor-agent"]
	if len(got) != 1 {
		t.Fatalf("expected one motor publication, got %d", len(got))
	}
	frames, err := DecodeXYZP(got[0])
	if err != nil {
		t.Fatalf("decode motor payload: %v", err)
	}
	if len(frames) != 1 || frames[0].Area != "omot00" {
		t.Fatalf("expected only subscribed area, got %+v", frames)
	}

	// No subscribed area fired: no publication at all.
	if len(motor.published["elsewhere"]) != 0 {
		t.Fatalf("expected silence for unmatched subscription, got %d messages", len(motor.published["elsewhere"]))
	}
}

func TestDispatchPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}
	f := New(Options{Store: store})

	f.Dispatch(ctx, 42, sampleSnapshot(), time.Now())

	rec, ok, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored snapshot")
	}
	if rec.BurstNumber != 42 {
		t.Fatalf("expected burst 42, got %d", rec.BurstNumber)
	}
	if rec.AreaCount != 2 || rec.NeuronCount != 3 {
		t.Fatalf("unexpected snapshot totals: areas=%d neurons=%d", rec.AreaCount, rec.NeuronCount)
	}
	if _, err := DecodeXYZP(rec.Payload); err != nil {
		t.Fatalf("stored payload does not decode: %v", err)
	}
}

func TestDispatchToleratesPublishFailures(t *testing.T) {
	viz := &fakeViz{err: errors.New("viz transport down")}
	motor := newFakeMotor()
	motor.err = errors.New("motor transport down")
	f := New(Options{Viz: viz, Motor: motor})
	f.RegisterSubscriptions("agent", []model.CorticalID{"omot00"})

	// Both channels fail; dispatch must still visit each consumer.
	f.Dispatch(context.Background(), 1, sampleSnapshot(), time.Now())
	if viz.calls != 1 {
		t.Fatalf("expected viz attempt, got %d", viz.calls)
	}
	if len(motor.published["agent"]) != 1 {
		t.Fatalf("expected motor attempt, got %d", len(motor.published["agent"]))
	}
}

func TestDispatchSkipsEmptySnapshot(t *testing.T) {
	viz := &fakeViz{}
	f := New(Options{Viz: viz})
	f.Dispatch(context.Background(), 1, model.FireSnapshot{}, time.Now())
	if viz.calls != 0 {
		t.Fatal("expected empty snapshot to be dropped")
	}
}
