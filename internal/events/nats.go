package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "typeroyale.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes each event on <prefix>.<room>.<type>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("type-royale"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func Subject(prefix string, event Event) string {
	return fmt.Sprintf("%s.%s.%s", strings.TrimSuffix(prefix, "."), event.RoomID, event.Type)
}

func (p *NATSPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(Subject(p.prefix, event))
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Data = data
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
