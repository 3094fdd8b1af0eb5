package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
)

const (
	connectTimeout          = 10 * time.Second
	publishTimeout          = 5 * time.Second
	keepAlive               = 60 * time.Second
	disconnectQuiesceMillis = 1000

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// clientOptions translates the mqtt config section into paho options:
// broker URL (ssl:// when TLS is on), credentials, clean session and
// reconnect backoff bounds.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// Presence values on the Status topic.
const (
	presenceOnline  = "online"
	presenceOffline = "offline"

	reasonShutdown = "graceful_shutdown"
	reasonLost     = "unexpected_disconnect"
)

// presenceMessage is the retained payload on Topics.Status.
type presenceMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func presence(clientID, status, reason string) []byte {
	// A struct of strings always encodes.
	b, _ := json.Marshal(presenceMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// setWill registers the retained "offline" message the broker sends if the
// daemon drops off without a clean disconnect.
func setWill(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetBinaryWill(Topics{}.Status(clientID), presence(clientID, presenceOffline, reasonLost), 1, true)
}
