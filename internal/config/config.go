package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type GatewayConfig struct {
	Addr        string        `mapstructure:"addr" validate:"required"`
	ReadLimit   int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod  time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
}

type MediaConfig struct {
	// Source selects the media adapter: "ogg" reads an Ogg/Opus
	// readable, "rtp" expects RFC 4571 framed RTP packets.
	Source     string `mapstructure:"source" validate:"oneof=ogg rtp"`
	SampleRate uint32 `mapstructure:"sample_rate" validate:"gt=0"`
	Channels   uint16 `mapstructure:"channels" validate:"gt=0"`
}

type Config struct {
	Mode     string        `mapstructure:"mode" validate:"oneof=debug release"`
	Port     int           `mapstructure:"port" validate:"gt=0"`
	OnFinish string        `mapstructure:"on_finish" validate:"oneof=leave stay"`
	Gateway  GatewayConfig `mapstructure:"gateway"`
	Media    MediaConfig   `mapstructure:"media"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("on_finish", "stay")
	v.SetDefault("gateway.addr", "ws://127.0.0.1:9090/rpc")
	v.SetDefault("gateway.read_limit", 1<<20)
	v.SetDefault("gateway.ping_period", "54s")
	v.SetDefault("gateway.call_timeout", "30s")
	v.SetDefault("media.source", "ogg")
	v.SetDefault("media.sample_rate", 48000)
	v.SetDefault("media.channels", 2)
}
