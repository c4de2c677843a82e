package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-oximeter/internal/models"
)

const readingPattern = "oximeter/{device_id}/reading"

func TestFormatTopic(t *testing.T) {
	assert.Equal(t, "oximeter/node-1/reading", FormatTopic(readingPattern, "node-1"))
	assert.Equal(t, "static/topic", FormatTopic("static/topic", "node-1"))
	assert.Equal(t, "oximeter/+/reading", SubscriptionTopic(readingPattern))
}

func TestExtractDeviceID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"oximeter/node-7/reading", "node-7"},
		{"oximeter/node-7/reading/extra", ""},
		{"oximeter", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDeviceID(tt.topic, readingPattern), tt.topic)
	}
	assert.Equal(t, "", ExtractDeviceID("a/b", "a/b"), "pattern without placeholder")
}

func TestSubscriber_ParseMessage(t *testing.T) {
	s := NewSubscriber(nil, SubscriberConfig{ReadingTopic: readingPattern}, nil)

	m, err := s.parseMessage("oximeter/node-3/reading", []byte("75.0,98.5"))
	require.NoError(t, err)
	assert.Equal(t, "node-3", m.DeviceID)
	assert.Equal(t, 75.0, m.HeartRate)
	assert.Equal(t, 98.5, m.SpO2)
	assert.Equal(t, "75.0,98.5", m.RawPayload)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Timestamp.IsZero())

	_, err = s.parseMessage("oximeter/node-3/reading", []byte("garbage"))
	assert.ErrorIs(t, err, models.ErrMalformedPayload)

	_, err = s.parseMessage("elsewhere", []byte("75.0,98.5"))
	assert.Error(t, err)
}
