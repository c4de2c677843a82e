package mqtt

import "strings"

// FormatTopic replaces the {device_id} placeholder with the actual device ID
func FormatTopic(topicPattern, deviceID string) string {
	return strings.ReplaceAll(topicPattern, "{device_id}", deviceID)
}

// SubscriptionTopic turns a per-device pattern into a wildcard filter,
// e.g. "oximeter/{device_id}/reading" -> "oximeter/+/reading"
func SubscriptionTopic(topicPattern string) string {
	return FormatTopic(topicPattern, "+")
}

// ExtractDeviceID extracts the device ID from a topic that matches pattern
// Example: ("oximeter/node-7/reading", "oximeter/{device_id}/reading") -> "node-7"
func ExtractDeviceID(topic, topicPattern string) string {
	parts := strings.Split(topic, "/")
	patternParts := strings.Split(topicPattern, "/")
	if len(parts) != len(patternParts) {
		return ""
	}
	for i, p := range patternParts {
		if p == "{device_id}" {
			return parts[i]
		}
	}
	return ""
}
