package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.), security settings
// - default: Values common across all environments (timezone, timeout, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server      ServerConfig
	DB          DBConfig
	CORS        CORSConfig
	Log         LogConfig
	JWT         JWTConfig
	Cookie      CookieConfig
	Store       StoreConfig
	Feed        FeedConfig
	Notifier    NotifierConfig
	CodeGen     CodeGenConfig
	Lot         LotConfig
	Reservation ReservationConfig
	Sensor      SensorConfig
	Federated   FederatedConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	DBName   string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"UTC"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"20"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"UTC"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"0"`
}

type JWTConfig struct {
	Secret   string `envconfig:"JWT_SECRET" required:"true"`
	Duration string `envconfig:"JWT_DURATION" default:"24h"`
}

type CookieConfig struct {
	Domain   string `envconfig:"COOKIE_DOMAIN" default:""`
	Secure   bool   `envconfig:"COOKIE_SECURE" default:"true"`
	SameSite string `envconfig:"COOKIE_SAMESITE" default:"Lax"`
}

// StoreConfig selects the backing store. "memory" needs no database and is seeded
// from MemorySlots.
type StoreConfig struct {
	Driver      string   `envconfig:"STORE_DRIVER" default:"postgres"`
	MemorySlots []string `envconfig:"MEMSTORE_SLOTS" default:"slot-1,slot-2,slot-3,slot-4,slot-5,slot-6,slot-7,slot-8"`
}

// FeedConfig controls reconnects of the live slot feed. MaxRetries=0 keeps the feed
// one-shot: the first error is reported and the subscription stays down.
type FeedConfig struct {
	MaxRetries      uint64        `envconfig:"FEED_MAX_RETRIES" default:"5"`
	InitialInterval time.Duration `envconfig:"FEED_INITIAL_INTERVAL" default:"500ms"`
	MaxInterval     time.Duration `envconfig:"FEED_MAX_INTERVAL" default:"30s"`
}

type NotifierConfig struct {
	Endpoint    string        `envconfig:"NOTIFIER_ENDPOINT" default:"https://api.emailjs.com/api/v1.0/email/send"`
	ServiceID   string        `envconfig:"NOTIFIER_SERVICE_ID"`
	TemplateID  string        `envconfig:"NOTIFIER_TEMPLATE_ID"`
	PublicKey   string        `envconfig:"NOTIFIER_PUBLIC_KEY"`
	AccessToken string        `envconfig:"NOTIFIER_ACCESS_TOKEN"`
	FromName    string        `envconfig:"NOTIFIER_FROM_NAME" default:"Smart Parking System"`
	Subject     string        `envconfig:"NOTIFIER_SUBJECT" default:"Your Parking Reservation Confirmation"`
	Timeout     time.Duration `envconfig:"NOTIFIER_TIMEOUT" default:"0s"`
}

type CodeGenConfig struct {
	Endpoint string `envconfig:"CODEGEN_ENDPOINT" default:"https://api.qrserver.com/v1/create-qr-code/"`
	Size     string `envconfig:"CODEGEN_SIZE" default:"256x256"`
}

type LotConfig struct {
	MaintenanceSlots []string `envconfig:"LOT_MAINTENANCE_SLOTS" default:"m1,m2,m3,m4,m5"`
}

type ReservationConfig struct {
	Serialize bool `envconfig:"RESERVATION_SERIALIZE" default:"false"`
}

type SensorConfig struct {
	Source       string        `envconfig:"SENSOR_SOURCE" default:"none"`
	MQTTBroker   string        `envconfig:"SENSOR_MQTT_BROKER" default:"tcp://localhost:1883"`
	MQTTTopic    string        `envconfig:"SENSOR_MQTT_TOPIC" default:"parking/slots/+/occupancy"`
	MQTTClientID string        `envconfig:"SENSOR_MQTT_CLIENT_ID" default:"parkwise"`
	SQSQueueURL  string        `envconfig:"SENSOR_SQS_QUEUE_URL"`
	SQSRegion    string        `envconfig:"SENSOR_SQS_REGION" default:"ap-northeast-1"`
	SQSWaitTime  time.Duration `envconfig:"SENSOR_SQS_WAIT_TIME" default:"20s"`
}

type FederatedConfig struct {
	Issuer string `envconfig:"FEDERATED_ISSUER" default:"https://accounts.google.com"`
	Secret string `envconfig:"FEDERATED_SECRET"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	SensorSourceNone = "none"
	SensorSourceMQTT = "mqtt"
	SensorSourceSQS  = "sqs"
)

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.DB.User == "" || c.DB.DBName == "" {
			return fmt.Errorf("DB_USER and DB_NAME are required for store driver %q", c.Store.Driver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Sensor.Source {
	case SensorSourceNone, SensorSourceMQTT:
	case SensorSourceSQS:
		if c.Sensor.SQSQueueURL == "" {
			return fmt.Errorf("SENSOR_SQS_QUEUE_URL is required for sensor source %q", c.Sensor.Source)
		}
	default:
		return fmt.Errorf("unknown SENSOR_SOURCE %q", c.Sensor.Source)
	}
	return nil
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			TimeZone: "UTC",
			MaxConns: 5,
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeZone:   "UTC",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		JWT: JWTConfig{
			Secret:   "test-secret",
			Duration: "1h",
		},
		Store: StoreConfig{
			Driver:      StoreDriverMemory,
			MemorySlots: []string{"slot-1", "slot-2", "slot-3"},
		},
		Feed: FeedConfig{
			MaxRetries:      0,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
		},
		CodeGen: CodeGenConfig{
			Endpoint: "https://api.qrserver.com/v1/create-qr-code/",
			Size:     "256x256",
		},
		Lot: LotConfig{
			MaintenanceSlots: []string{"m1", "m2"},
		},
		Sensor: SensorConfig{
			Source: SensorSourceNone,
		},
	}
}
