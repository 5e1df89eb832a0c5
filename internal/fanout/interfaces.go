package fanout

import "feagi/internal/model"

// VisualizationPublisher receives the whole-connectome fire snapshot. Any
// transport can implement it; the burst loop never depends on a concrete
// transport type.
type VisualizationPublisher interface {
	PublishRawFireQueue(snapshot model.FireSnapshot) error
}

// MotorPublisher receives encoded motor output for one agent.
type MotorPublisher interface {
	PublishMotor(agentID string, data []byte) error
}
