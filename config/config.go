package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Payload PayloadConfig `mapstructure:"payload"`
	Model   ModelConfig   `mapstructure:"model"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type UploadConfig struct {
	Dir               string   `mapstructure:"dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// PayloadConfig bounds the base64 body accepted by the inline API. The
// bounds apply to the encoded representation, before any decode work.
type PayloadConfig struct {
	MinBytes int `mapstructure:"min_bytes"`
	MaxBytes int `mapstructure:"max_bytes"`
}

type ModelConfig struct {
	Path             string        `mapstructure:"path"`
	OrtLibrary       string        `mapstructure:"ort_library"`
	PoolSize         int           `mapstructure:"pool_size"`
	ConfThreshold    float64       `mapstructure:"conf_threshold"`
	IouThreshold     float64       `mapstructure:"iou_threshold"`
	InferenceTimeout time.Duration `mapstructure:"inference_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load reads the YAML config at configPath, filling unset keys from defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New loads config.yaml from the working directory, falling back to the
// built-in defaults when the file is absent.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.allowed_extensions", []string{".jpg", ".png", ".gif"})

	v.SetDefault("payload.min_bytes", 512)
	v.SetDefault("payload.max_bytes", 4096*4096)

	v.SetDefault("model.path", "models/yolov5x.onnx")
	v.SetDefault("model.ort_library", "lib/libonnxruntime.so")
	v.SetDefault("model.pool_size", 4)
	v.SetDefault("model.conf_threshold", 0.25)
	v.SetDefault("model.iou_threshold", 0.45)
	v.SetDefault("model.inference_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}

// Default returns the configuration used when no config.yaml exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:5000",
			Mode:         "debug",
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Upload: UploadConfig{
			Dir:               "uploads",
			AllowedExtensions: []string{".jpg", ".png", ".gif"},
		},
		Payload: PayloadConfig{
			MinBytes: 512,
			MaxBytes: 4096 * 4096,
		},
		Model: ModelConfig{
			Path:             "models/yolov5x.onnx",
			OrtLibrary:       "lib/libonnxruntime.so",
			PoolSize:         4,
			ConfThreshold:    0.25,
			IouThreshold:     0.45,
			InferenceTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
	}
}
