package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/intuitherm/pattern-core/internal/infrastructure/config"
)

// Connection and publish timeouts.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for a publish to complete.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the grace period (ms) for in-flight messages on disconnect.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the MQTT keep-alive interval.
	defaultKeepAlive = 60 * time.Second

	// reconnectMaxInterval caps the exponential backoff between reconnect attempts.
	reconnectMaxInterval = 2 * time.Minute
)

// buildClientOptions constructs paho client options from config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(broker)

	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	opts.SetCleanSession(true)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetAutoReconnect(true)
	maxDelay := reconnectMaxInterval
	if cfg.Reconnect.MaxDelay > 0 {
		maxDelay = time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	}
	opts.SetMaxReconnectInterval(maxDelay)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(false)

	return opts
}

// configureLWT sets the Last Will and Testament message.
//
// The broker publishes this retained message on the engine status topic if
// the connection drops without a graceful disconnect, so observers can tell
// a crash from a clean shutdown.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	topic := Topics{}.EngineStatus()
	payload := buildLWTPayload(clientID)
	opts.SetWill(topic, string(payload), 1, true)
}

// statusPayload is the JSON body published on the engine status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Timestamp string `json:"timestamp"`
}

func buildLWTPayload(clientID string) []byte {
	return marshalStatus(statusPayload{
		Status:   "offline_unexpected",
		ClientID: clientID,
	})
}

func buildOnlinePayload(clientID string) []byte {
	return marshalStatus(statusPayload{
		Status:   "online",
		ClientID: clientID,
	})
}

func buildOfflinePayload(clientID string) []byte {
	return marshalStatus(statusPayload{
		Status:   "offline",
		ClientID: clientID,
	})
}

func marshalStatus(p statusPayload) []byte {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(p)
	if err != nil {
		// statusPayload contains only strings; marshal cannot fail.
		return []byte(`{"status":"unknown"}`)
	}
	return data
}
