package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Entity identifiers and friendly names are never written here; tags and
// fields carry only brands, roles, counts, and scores.

// WriteMatchRun records the outcome of one detection run.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - entityCount: Number of entities in the scanned snapshot
//   - assignedCount: Number of roles that received a final assignment
//   - duration: Wall time of the run
func (c *Client) WriteMatchRun(entityCount, assignedCount int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"match_run",
		map[string]string{},
		map[string]interface{}{
			"entity_count":   entityCount,
			"assigned_count": assignedCount,
			"duration_ms":    float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRoleMatch records the winning candidate for one role in a run.
//
// Parameters:
//   - brand: Pattern brand that won (e.g., "foxess")
//   - role: Capability role that was assigned
//   - score: The winning match score
//   - candidates: How many candidates cleared the accept threshold
func (c *Client) WriteRoleMatch(brand, role string, score float64, candidates int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"role_match",
		map[string]string{
			"brand": brand,
			"role":  role,
		},
		map[string]interface{}{
			"score":      score,
			"candidates": candidates,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFeedback records a user confirmation, rejection, or correction.
//
// Parameters:
//   - outcome: "confirm", "reject", or "correct"
//   - origin: Origin of the pattern the feedback applied to
func (c *Client) WriteFeedback(outcome, origin string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"feedback",
		map[string]string{
			"outcome": outcome,
			"origin":  origin,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLearnedCount records the current size of the learned pattern set.
// Useful for watching growth and the effect of pruning.
func (c *Client) WriteLearnedCount(count int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"learned_patterns",
		map[string]string{},
		map[string]interface{}{
			"count": count,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
