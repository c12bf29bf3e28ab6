package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MakeTrips generates n synthetic trips. Trip i starts at base + i minutes
// and lasts ten minutes; vehicle ids cycle so vehicle filters select
// predictable subsets.
func MakeTrips(n int, base time.Time) []map[string]any {
	trips := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		trips = append(trips, map[string]any{
			"trip_id":    uuid.NewString(),
			"device_id":  uuid.NewString(),
			"vehicle_id": fmt.Sprintf("vehicle-%03d", i%5),
			"start_time": start.Unix(),
			"end_time":   start.Add(10 * time.Minute).Unix(),
		})
	}
	return trips
}

// MakeStatusChanges generates n synthetic status changes, one per minute
// from base.
func MakeStatusChanges(n int, base time.Time) []map[string]any {
	changes := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		changes = append(changes, map[string]any{
			"device_id":    uuid.NewString(),
			"vehicle_id":   fmt.Sprintf("vehicle-%03d", i%5),
			"event_type":   "available",
			"event_time":   base.Add(time.Duration(i) * time.Minute).Unix(),
			"battery_pct":  0.8,
			"provider_ref": i,
		})
	}
	return changes
}
