package sensor

import (
	"context"
	"log/slog"
	"time"

	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/usecase/commands"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 10 * time.Second
	mqttHandleTimeout  = 5 * time.Second
)

// MQTTSource subscribes to the occupancy topic. The subscription is renewed on every
// (re)connect.
type MQTTSource struct {
	cfg       config.SensorConfig
	occupancy commands.OccupancyCommands
	logger    *slog.Logger
	client    mqtt.Client
}

func NewMQTTSource(cfg config.SensorConfig, occupancy commands.OccupancyCommands, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSource{cfg: cfg, occupancy: occupancy, logger: logger}
}

func (s *MQTTSource) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.MQTTBroker).
		SetClientID(s.cfg.MQTTClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(s.cfg.MQTTTopic, mqttQoS, s.onMessage)
			if token.WaitTimeout(mqttConnectTimeout) && token.Error() != nil {
				s.logger.Error("failed to subscribe to sensor topic", "topic", s.cfg.MQTTTopic, "error", token.Error().Error())
				return
			}
			s.logger.Info("subscribed to sensor topic", "topic", s.cfg.MQTTTopic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("sensor broker connection lost", "error", err.Error())
		})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return errs.Wrapf(err, "failed to connect to sensor broker %s", s.cfg.MQTTBroker)
	}
	return nil
}

func (s *MQTTSource) Stop() {
	if s.client == nil {
		return
	}
	s.client.Unsubscribe(s.cfg.MQTTTopic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), mqttHandleTimeout)
	defer cancel()

	if deliver(ctx, s.occupancy, msg.Payload(), s.logger.With("topic", msg.Topic())) {
		msg.Ack()
	}
}
