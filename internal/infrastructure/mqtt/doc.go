// Package mqtt provides the MQTT transport for IntuiTherm Pattern Core.
//
// The engine uses MQTT for three things: receiving entity-registry
// snapshots, announcing match results, and (when enabled) publishing
// signed community pattern submissions. All topics live under the
// "intuitherm" namespace; see Topics for the layout.
//
// The client wraps eclipse/paho.mqtt.golang with automatic reconnection,
// subscription restoration, a retained Last Will status message, and
// panic-recovered message handlers. All methods are safe for concurrent
// use.
package mqtt
