package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// mqttClient is the subset of owl-common/mqtt.Client used here.
type mqttClient interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTPublisher pushes events to <prefix><subject_id> for live dashboards.
type MQTTPublisher struct {
	client      mqttClient
	topicPrefix string
}

func NewMQTTPublisher(client mqttClient, topicPrefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix}
}

func (p *MQTTPublisher) Topic(subjectID string) string {
	return p.topicPrefix + subjectID
}

func (p *MQTTPublisher) Publish(_ context.Context, event AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}
	return p.client.Publish(p.Topic(event.SubjectID), false, payload)
}
