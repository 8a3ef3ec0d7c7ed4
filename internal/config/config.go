package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	StorePath           string `env:"STORE_PATH" env-default:"/data/partsbin.db"`
	AssetUploadURL      string `env:"ASSET_UPLOAD_URL" env-default:"https://api.cloudinary.com/v1_1/partsbin/image/upload"`
	AssetUploadPreset   string `env:"ASSET_UPLOAD_PRESET" env-default:"unsigned_inventory"`
	PlaceholderImageURL string `env:"PLACEHOLDER_IMAGE_URL" env-default:"https://via.placeholder.com/150?text=No+Image"`
	MaxImageBytes       int64  `env:"MAX_IMAGE_BYTES" env-default:"10485760"`
	LogLevel            string `env:"LOG_LEVEL" env-default:"info"`
	LogFile             string `env:"LOG_FILE" env-default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.MaxImageBytes <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", cfg.MaxImageBytes)
	}
	return &cfg, nil
}
