package enums

import "strings"

// TrackingStatus is the normalized carrier tracking state persisted per order.
type TrackingStatus string

const (
	TrackingStatusUnknown    TrackingStatus = "unknown"
	TrackingStatusPreTransit TrackingStatus = "pre_transit"
	TrackingStatusInTransit  TrackingStatus = "transit"
	TrackingStatusDelivered  TrackingStatus = "delivered"
	TrackingStatusReturned   TrackingStatus = "returned"
	TrackingStatusFailure    TrackingStatus = "failure"
)

// NormalizeTrackingStatus maps raw carrier strings onto the known set,
// defaulting to unknown rather than failing.
func NormalizeTrackingStatus(raw string) TrackingStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PRE_TRANSIT", "PRE-TRANSIT":
		return TrackingStatusPreTransit
	case "TRANSIT", "IN_TRANSIT":
		return TrackingStatusInTransit
	case "DELIVERED":
		return TrackingStatusDelivered
	case "RETURNED":
		return TrackingStatusReturned
	case "FAILURE":
		return TrackingStatusFailure
	default:
		return TrackingStatusUnknown
	}
}
