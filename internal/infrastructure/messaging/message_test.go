package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePayloadRoundTrip(t *testing.T) {
	det := &DetectionMessage{
		EventID:       "nvr-1",
		CameraID:      "front_door",
		DetectionType: "person",
		DetectedAt:    time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		HasClip:       true,
		Score:         0.92,
	}

	msg, err := NewMessage("1-0", MsgTypeDetection, det.CameraID, det.EventID, det)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeDetection, msg.Type)

	var decoded DetectionMessage
	require.NoError(t, msg.UnmarshalPayload(&decoded))
	assert.Equal(t, *det, decoded)
}

func TestMessageMetadata(t *testing.T) {
	msg := &Message{}
	assert.Empty(t, msg.GetMetadata("trace_id"))

	msg.SetMetadata("trace_id", "abc")
	assert.Equal(t, "abc", msg.GetMetadata("trace_id"))
}

func TestDLQStream(t *testing.T) {
	assert.Equal(t, "dlq:stream:events:detected", StreamEventsDetected.DLQStream())
}

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
	}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(3))
	// 封顶在 Max
	assert.Equal(t, 30*time.Second, cfg.CalculateBackoff(10))
}
