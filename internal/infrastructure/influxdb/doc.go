// Package influxdb records detection-quality metrics for IntuiTherm
// Pattern Core.
//
// The engine works fine without it: the integration is optional, writes
// are batched and non-blocking, and async write failures surface only
// through an error callback. Measurements carry brands, roles, scores,
// and counts, never entity IDs or friendly names.
package influxdb
