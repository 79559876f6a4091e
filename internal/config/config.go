package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	DBPath         string  `mapstructure:"db_path"`
	Store          string  `mapstructure:"store"`
	RedisAddr      string  `mapstructure:"redis_addr"`
	RedisPassword  string  `mapstructure:"redis_password"`
	PostgresURL    string  `mapstructure:"postgres_url"`
	JWTSecret      string  `mapstructure:"jwt_secret"`
	HTTPAddr       string  `mapstructure:"http_addr"`
	Units          string  `mapstructure:"units"`
	MaxAccuracy    float64 `mapstructure:"max_accuracy"`
	CruiseSpeedKmh float64 `mapstructure:"cruise_speed_kmh"`
	RoutesFile     string  `mapstructure:"routes_file"`
}

// Load reads configuration from MOTO_* environment variables and, when file
// is not empty, from a config file. Environment wins over the file.
func Load(file string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOTO")
	v.AutomaticEnv()

	v.SetDefault("db_path", "moto.db")
	v.SetDefault("store", "sqlite")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("postgres_url", "")
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("http_addr", ":8222")
	v.SetDefault("units", "metric")
	v.SetDefault("max_accuracy", 50.0)
	v.SetDefault("cruise_speed_kmh", 60.0)
	v.SetDefault("routes_file", "")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
