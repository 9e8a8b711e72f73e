package config

// Config is the vpin-service configuration tree, loaded from
// config/vpin-service.yaml with VPIN_SERVICE_* env overrides.
type Config struct {
	Name     string       `mapstructure:"name"`
	LogLevel string       `mapstructure:"logLevel"`
	HTTP     HTTPConfig   `mapstructure:"http"`
	Stream   StreamConfig `mapstructure:"stream"`
	Source   SourceConfig `mapstructure:"source"`
	NATS     NATSConfig   `mapstructure:"nats"`
	Influx   InfluxConfig `mapstructure:"influx"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// StreamConfig holds the computation parameters. BucketSize is a decimal
// string so the volume clock is exact.
type StreamConfig struct {
	Symbol         string  `mapstructure:"symbol"`
	BucketSize     string  `mapstructure:"bucketSize"`
	WindowSize     int     `mapstructure:"windowSize"`
	AlertThreshold float64 `mapstructure:"alertThreshold"`
	TriggerMargin  float64 `mapstructure:"triggerMargin"`
	HistorySize    int     `mapstructure:"historySize"`
	AutoStart      bool    `mapstructure:"autoStart"`
}

type SourceConfig struct {
	URL string `mapstructure:"url"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}
