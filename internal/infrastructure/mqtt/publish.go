package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hydrocloud/hydro-core/internal/telemetry"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20 // 1MB

// forwarderName identifies this client in logs and metrics.
const forwarderName = "mqtt"

// summaryMessage is the JSON body published on hydro/{site}/summary.
type summaryMessage struct {
	Site       string  `json:"site"`
	Timestamp  string  `json:"timestamp"`
	WaterLevel float64 `json:"water_level"`
	WaterTemp  float64 `json:"water_temp"`
	EC         float64 `json:"ec"`
	TDS        float64 `json:"tds"`
	PH         float64 `json:"ph"`
}

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - ctx: Bounds the wait for broker acknowledgment
//   - topic: The topic to publish to (e.g., "hydro/hydro-001/summary")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	token := c.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishSummary publishes rec as JSON on the site's summary topic with the
// configured QoS. Summaries are not retained.
func (c *Client) PublishSummary(ctx context.Context, rec telemetry.SummaryRecord) error {
	payload, err := encodeSummary(c.topics.Site, rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return c.Publish(ctx, c.topics.Summary(), payload, byte(c.cfg.QoS), false)
}

// Name identifies the client as a summary forwarder.
func (c *Client) Name() string {
	return forwarderName
}

// Forward implements acquisition.Forwarder.
func (c *Client) Forward(ctx context.Context, rec telemetry.SummaryRecord) error {
	return c.PublishSummary(ctx, rec)
}

func encodeSummary(site string, rec telemetry.SummaryRecord) ([]byte, error) {
	return json.Marshal(summaryMessage{
		Site:       site,
		Timestamp:  rec.Timestamp.UTC().Format(time.RFC3339Nano),
		WaterLevel: rec.WaterLevel,
		WaterTemp:  rec.WaterTemp,
		EC:         rec.EC,
		TDS:        rec.TDS,
		PH:         rec.PH,
	})
}
