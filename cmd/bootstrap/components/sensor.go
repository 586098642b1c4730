package components

import (
	"context"
	"log/slog"

	"parkwise/internal/infra/sensor"
	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/commands"

	"go.uber.org/fx"
)

var SensorModule = fx.Module("sensor",
	fx.Provide(NewSensorSource),
	fx.Invoke(startSensor),
)

func NewSensorSource(cfg config.Config, occupancy commands.OccupancyCommands, logger *slog.Logger) (sensor.Source, error) {
	switch cfg.Sensor.Source {
	case config.SensorSourceMQTT:
		return sensor.NewMQTTSource(cfg.Sensor, occupancy, logger), nil
	case config.SensorSourceSQS:
		client, err := sensor.NewSQSClient(context.Background(), cfg.Sensor)
		if err != nil {
			return nil, err
		}
		return sensor.NewSQSSource(client, cfg.Sensor, occupancy, logger), nil
	default:
		return sensor.Nop{}, nil
	}
}

func startSensor(lc fx.Lifecycle, src sensor.Source) {
	lc.Append(fx.Hook{
		OnStart: src.Start,
		OnStop: func(_ context.Context) error {
			src.Stop()
			return nil
		},
	})
}
