package npu

import (
	"testing"

	"feagi/internal/model"
)

func singleAreaConfig(area AreaConfig) Config {
	return Config{Areas: []AreaConfig{area}}
}

func mustEngine(t *testing.T, cfg Config) Engine {
	t.Helper()
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func TestTopologyValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"no areas", Config{}},
		{"blank id", singleAreaConfig(AreaConfig{Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}})},
		{"zero dims", singleAreaConfig(AreaConfig{CorticalID: "a", Dimensions: model.Coordinate{X: 1, Y: 0, Z: 1}})},
		{"duplicate id", Config{Areas: []AreaConfig{
			{CorticalID: "a", Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}},
			{CorticalID: "a", Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}},
		}}},
		{"dangling synapse", Config{
			Areas:    []AreaConfig{{CorticalID: "a", Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}}},
			Synapses: []Synapse{{From: 0, To: 99, Weight: 1}},
		}},
		{"bad precision", Config{
			Precision: "f64",
			Areas:     []AreaConfig{{CorticalID: "a", Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}}},
		}},
	}
	for _, tc := range cases {
		if _, err := NewEngine(tc.cfg); err == nil {
			t.Fatalf("%s: expected construction error", tc.name)
		}
	}
}

func TestFireAboveThreshold(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:      "a",
		Dimensions:      model.Coordinate{X: 2, Y: 2, Z: 1},
		FiringThreshold: 1.0,
	}))

	eng.InjectSensory([]model.NeuronPotential{
		{ID: 0, Potential: 1.5},
		{ID: 1, Potential: 0.4},
	})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatalf("expected 1 fired neuron, got %d", result.FiredCount)
	}
	fire := result.Sample[0]
	if fire == nil || fire.Len() != 1 {
		t.Fatalf("expected sample with one neuron in area 0, got %+v", result.Sample)
	}
	if fire.NeuronIDs[0] != 0 {
		t.Fatalf("expected neuron 0 to fire, got %d", fire.NeuronIDs[0])
	}
	if fire.Potentials[0] != 1.5 {
		t.Fatalf("expected fired potential 1.5, got %v", fire.Potentials[0])
	}

	// Sub-threshold neuron was reset, not carried forward.
	result, err = eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 0 || result.Sample != nil {
		t.Fatalf("expected quiet tick, got %+v", result)
	}
}

func TestLeakAppliedBeforeFireCheck(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:      "a",
		Dimensions:      model.Coordinate{X: 1, Y: 1, Z: 1},
		FiringThreshold: 1.0,
		LeakCoefficient: 0.5,
	}))

	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 2.0}})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatalf("expected fire, got %d", result.FiredCount)
	}
	if got := result.Sample[0].Potentials[0]; got != 1.0 {
		t.Fatalf("expected decayed potential 1.0, got %v", got)
	}
}

func TestRefractoryPeriodSuppressesFiring(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:       "a",
		Dimensions:       model.Coordinate{X: 1, Y: 1, Z: 1},
		FiringThreshold:  1.0,
		RefractoryPeriod: 2,
	}))

	fireAt := func() bool {
		eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 2.0}})
		result, err := eng.ProcessBurst()
		if err != nil {
			t.Fatalf("process burst: %v", err)
		}
		return result.FiredCount > 0
	}

	if !fireAt() {
		t.Fatal("expected fire on first burst")
	}
	if fireAt() {
		t.Fatal("expected refractory suppression on second burst")
	}
	if fireAt() {
		t.Fatal("expected refractory suppression on third burst")
	}
	if !fireAt() {
		t.Fatal("expected fire once refractory window passed")
	}
}

func TestRefractoryPeriodOneBlocksExactlyOneBurst(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:       "a",
		Dimensions:       model.Coordinate{X: 1, Y: 1, Z: 1},
		FiringThreshold:  1.0,
		RefractoryPeriod: 1,
	}))

	fired := func() bool {
		eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 2.0}})
		result, err := eng.ProcessBurst()
		if err != nil {
			t.Fatalf("process burst: %v", err)
		}
		return result.FiredCount > 0
	}

	// A one-burst refractory period means fire, sit out the next burst,
	// then fire again.
	if !fired() {
		t.Fatal("expected fire on first burst")
	}
	if fired() {
		t.Fatal("expected the burst after firing to be suppressed")
	}
	if !fired() {
		t.Fatal("expected fire on third burst")
	}
}

func TestConsecutiveFireLimitTriggersSnooze(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:           "a",
		Dimensions:           model.Coordinate{X: 1, Y: 1, Z: 1},
		FiringThreshold:      1.0,
		ConsecutiveFireLimit: 2,
		SnoozePeriod:         3,
	}))

	var pattern []bool
	for i := 0; i < 6; i++ {
		eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 2.0}})
		result, err := eng.ProcessBurst()
		if err != nil {
			t.Fatalf("process burst %d: %v", i, err)
		}
		pattern = append(pattern, result.FiredCount > 0)
	}

	// Two fires, three snoozed ticks, then firing resumes.
	want := []bool{true, true, false, false, false, true}
	for i := range want {
		if pattern[i] != want[i] {
			t.Fatalf("burst %d: fired=%v, want %v (pattern %v)", i+1, pattern[i], want[i], pattern)
		}
	}
}

func TestChargeAccumulationCarriesSubThresholdPotential(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:         "a",
		Dimensions:         model.Coordinate{X: 1, Y: 1, Z: 1},
		FiringThreshold:    1.0,
		ChargeAccumulation: true,
	}))

	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 0.6}})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 0 {
		t.Fatal("expected no fire below threshold")
	}

	// The accumulated 0.6 plus a second 0.6 crosses threshold without any
	// further candidate registration.
	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 0.6}})
	result, err = eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatal("expected accumulated charge to fire")
	}
}

func TestSynapticPropagationFeedsNextTick(t *testing.T) {
	eng := mustEngine(t, Config{
		Areas: []AreaConfig{
			{CorticalID: "in", Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}, FiringThreshold: 1.0},
			{CorticalID: "out", Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1}, FiringThreshold: 1.0},
		},
		Synapses: []Synapse{{From: 0, To: 1, Weight: 0.5}},
	})

	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 2.0}})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 || result.Sample[0] == nil {
		t.Fatalf("expected source fire, got %+v", result)
	}

	// 0.5 * 2.0 lands on the downstream neuron for the next tick.
	result, err = eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatalf("expected downstream fire, got %d", result.FiredCount)
	}
	fire := result.Sample[1]
	if fire == nil || fire.Len() != 1 || fire.CorticalID != "out" {
		t.Fatalf("expected fire in area out, got %+v", result.Sample)
	}
	if fire.Potentials[0] != 1.0 {
		t.Fatalf("expected propagated potential 1.0, got %v", fire.Potentials[0])
	}
}

func TestExcitabilityScalesFireCheck(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID:      "a",
		Dimensions:      model.Coordinate{X: 1, Y: 1, Z: 1},
		FiringThreshold: 1.0,
		Excitability:    0.5,
	}))

	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 1.5}})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	// 1.5 * 0.5 = 0.75 < 1.0
	if result.FiredCount != 0 {
		t.Fatal("expected dampened neuron not to fire")
	}

	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 2.5}})
	result, err = eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatal("expected fire at 2.5 * 0.5 >= 1.0")
	}
}

func TestInt8PotentialsSaturate(t *testing.T) {
	eng := mustEngine(t, Config{
		Precision: PrecisionInt8,
		Areas: []AreaConfig{{
			CorticalID:      "a",
			Dimensions:      model.Coordinate{X: 1, Y: 1, Z: 1},
			FiringThreshold: 1.0,
		}},
	})
	if eng.Precision() != PrecisionInt8 {
		t.Fatalf("expected int8 engine, got %s", eng.Precision())
	}

	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 100.0}})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatal("expected saturated neuron to fire")
	}
	if got := result.Sample[0].Potentials[0]; got != 127.0/16 {
		t.Fatalf("expected saturated potential %v, got %v", 127.0/16, got)
	}
}

func TestBatchNeuronIDsResolvesCoordinates(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID: "a",
		Dimensions: model.Coordinate{X: 2, Y: 3, Z: 1},
	}))

	ids := eng.BatchNeuronIDs(0, []model.Coordinate{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 2, Z: 0},
		{X: 5, Y: 0, Z: 0},
	})
	if ids[0] != 0 {
		t.Fatalf("expected origin to resolve to neuron 0, got %d", ids[0])
	}
	if ids[1] != 5 {
		t.Fatalf("expected (1,2,0) to resolve to neuron 5, got %d", ids[1])
	}
	if ids[2] != model.InvalidNeuron {
		t.Fatalf("expected out-of-bounds coordinate to be invalid, got %d", ids[2])
	}

	if got := eng.BatchNeuronIDs(99, []model.Coordinate{{X: 0, Y: 0, Z: 0}}); got[0] != model.InvalidNeuron {
		t.Fatalf("expected unknown area lookup to be invalid, got %d", got[0])
	}
}

func TestParameterSettersReportAffectedCounts(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID: "a",
		Dimensions: model.Coordinate{X: 2, Y: 2, Z: 2},
	}))

	if got := eng.SetFiringThreshold(0, 2.0); got != 8 {
		t.Fatalf("expected 8 affected neurons, got %d", got)
	}
	if got := eng.SetFiringThreshold(0, 0); got != 0 {
		t.Fatal("expected non-positive threshold to be rejected")
	}
	if got := eng.SetLeakCoefficient(0, 1.5); got != 0 {
		t.Fatal("expected out-of-domain leak to be rejected")
	}
	if got := eng.SetExcitability(99, 0.5); got != 0 {
		t.Fatal("expected unknown area to affect nothing")
	}
	if got := eng.SetChargeAccumulation(0, true); got != 8 {
		t.Fatalf("expected 8 affected neurons, got %d", got)
	}

	// The raised threshold is live from the next tick.
	eng.InjectSensory([]model.NeuronPotential{{ID: 0, Potential: 1.5}})
	result, err := eng.ProcessBurst()
	if err != nil {
		t.Fatalf("process burst: %v", err)
	}
	if result.FiredCount != 0 {
		t.Fatal("expected raised threshold to suppress fire")
	}
}

func TestBurstCountAdvancesEveryTick(t *testing.T) {
	eng := mustEngine(t, singleAreaConfig(AreaConfig{
		CorticalID: "a",
		Dimensions: model.Coordinate{X: 1, Y: 1, Z: 1},
	}))
	for i := 1; i <= 5; i++ {
		if _, err := eng.ProcessBurst(); err != nil {
			t.Fatalf("process burst: %v", err)
		}
		if got := eng.BurstCount(); got != uint64(i) {
			t.Fatalf("expected burst count %d, got %d", i, got)
		}
	}
}

func TestAreaLookups(t *testing.T) {
	eng := mustEngine(t, Config{Areas: []AreaConfig{
		{CorticalID: "ivis00", Dimensions: model.Coordinate{X: 2, Y: 2, Z: 1}},
		{CorticalID: "omot00", Dimensions: model.Coordinate{X: 4, Y: 1, Z: 1}},
	}})

	idx, ok := eng.AreaIndex("omot00")
	if !ok || idx != 1 {
		t.Fatalf("expected omot00 at index 1, got %d ok=%v", idx, ok)
	}
	if _, ok := eng.AreaIndex("nope"); ok {
		t.Fatal("expected unknown cortical id to miss")
	}
	id, ok := eng.CorticalID(0)
	if !ok || id != "ivis00" {
		t.Fatalf("expected ivis00 at index 0, got %s ok=%v", id, ok)
	}
	if eng.AreaCount() != 2 || eng.NeuronCount() != 8 {
		t.Fatalf("unexpected totals: areas=%d neurons=%d", eng.AreaCount(), eng.NeuronCount())
	}
}
