package main

import (
	"encoding/json"
	"fmt"
	"os"

	"feagi/internal/fanout"
	"feagi/internal/model"
	"feagi/internal/npu"
)

// loadConnectome reads a connectome config JSON, or returns the built-in
// demo connectome when path is empty.
func loadConnectome(path string) (npu.Config, error) {
	if path == "" {
		return demoConnectome(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return npu.Config{}, err
	}
	var cfg npu.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return npu.Config{}, fmt.Errorf("parse connectome %s: %w", path, err)
	}
	if len(cfg.Areas) == 0 {
		return npu.Config{}, fmt.Errorf("connectome %s declares no areas", path)
	}
	return cfg, nil
}

// demoConnectome is a small two-area circuit: an 8x8x1 vision sheet feeding
// a 4-neuron motor strip. Neuron IDs are flat in area declaration order,
// x-major within an area.
func demoConnectome() npu.Config {
	const (
		visionDim  = 8
		motorCount = 4
	)
	cfg := npu.Config{
		Precision: npu.PrecisionF32,
		Areas: []npu.AreaConfig{
			{
				CorticalID:       "ivis00",
				Dimensions:       model.Coordinate{X: visionDim, Y: visionDim, Z: 1},
				FiringThreshold:  1.0,
				LeakCoefficient:  0.1,
				RefractoryPeriod: 1,
				Excitability:     1.0,
			},
			{
				CorticalID:           "omot00",
				Dimensions:           model.Coordinate{X: motorCount, Y: 1, Z: 1},
				FiringThreshold:      1.5,
				LeakCoefficient:      0.2,
				RefractoryPeriod:     2,
				ConsecutiveFireLimit: 10,
				SnoozePeriod:         5,
				Excitability:         1.0,
			},
		},
	}

	motorStart := model.NeuronID(visionDim * visionDim)
	for i := 0; i < visionDim*visionDim; i++ {
		cfg.Synapses = append(cfg.Synapses, npu.Synapse{
			From:   model.NeuronID(i),
			To:     motorStart + model.NeuronID(i%motorCount),
			Weight: 0.6,
		})
	}
	return cfg
}

func decodeSnapshot(payload []byte) ([]model.SensoryFrame, error) {
	return fanout.DecodeXYZP(payload)
}
