package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/events"
)

// Config holds NATS connection settings for the game event bus.
type Config struct {
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultConfig returns the bus defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "cardgame.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Bus publishes and subscribes game event envelopes over NATS. The engine
// publishes; the gateway subscribes and fans out to websockets.
type Bus struct {
	nc      *nats.Conn
	subject string
}

// Connect dials NATS with reconnect handlers.
func Connect(config Config) (*Bus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Bus{nc: nc, subject: config.Subject}, nil
}

// Publish sends one envelope to the game subject. Implements
// engine.Broadcaster.
func (b *Bus) Publish(env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Subscribe delivers every envelope on the game subject to handler.
func (b *Bus) Subscribe(handler func(events.Envelope)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		env, err := events.DecodeEnvelope(msg.Data)
		if err != nil {
			log.Error().Err(err).Msg("dropping malformed bus message")
			return
		}
		handler(env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	return sub, nil
}

// Close drains and closes the connection.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
