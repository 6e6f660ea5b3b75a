package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Matching   MatchingConfig   `yaml:"matching"`
	Liveness   LivenessConfig   `yaml:"liveness"`
	Policy     PolicyConfig     `yaml:"policy"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	// MaxUploadMB bounds multipart enrollment uploads.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	MaxFaces           int     `yaml:"max_faces"`
	MaxImageDim        int     `yaml:"max_image_dim"`
	WorkerCount        int     `yaml:"worker_count"`
	// EmotionModel is optional; the landmark heuristic is used when it is missing.
	EmotionModel string `yaml:"emotion_model"`
}

type MatchingConfig struct {
	// Metric is "cosine" for learned embeddings or "combined" for geometric vectors.
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
}

type LivenessConfig struct {
	PassThreshold float64 `yaml:"pass_threshold"`
	MinCropSize   int     `yaml:"min_crop_size"`
}

type PolicyConfig struct {
	Routine float64 `yaml:"routine"`
	Strict  float64 `yaml:"strict"`
}

type EnrollmentConfig struct {
	MinImages int `yaml:"min_images"`
}

type CacheConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	SetDefaults(cfg)

	return cfg, nil
}

// SetDefaults fills zero values with the service defaults.
func SetDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.MaxFaces == 0 {
		cfg.Vision.MaxFaces = 60
	}
	if cfg.Vision.MaxImageDim == 0 {
		cfg.Vision.MaxImageDim = 1920
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Matching.Metric == "" {
		cfg.Matching.Metric = "cosine"
	}
	if cfg.Matching.Threshold == 0 {
		if cfg.Matching.Metric == "combined" {
			cfg.Matching.Threshold = 0.15
		} else {
			cfg.Matching.Threshold = 0.6
		}
	}
	if cfg.Liveness.PassThreshold == 0 {
		cfg.Liveness.PassThreshold = 55
	}
	if cfg.Liveness.MinCropSize == 0 {
		cfg.Liveness.MinCropSize = 20
	}
	if cfg.Policy.Routine == 0 {
		cfg.Policy.Routine = 50
	}
	if cfg.Policy.Strict == 0 {
		cfg.Policy.Strict = 85
	}
	if cfg.Enrollment.MinImages == 0 {
		cfg.Enrollment.MinImages = 3
	}
	if cfg.Cache.RefreshInterval == 0 {
		cfg.Cache.RefreshInterval = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTEND_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATTEND_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("ATTEND_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ATTEND_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ATTEND_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ATTEND_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ATTEND_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ATTEND_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ATTEND_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("ATTEND_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("ATTEND_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("ATTEND_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("ATTEND_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("ATTEND_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("ATTEND_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.Threshold = f
		}
	}
	if v := os.Getenv("ATTEND_CACHE_REFRESH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.RefreshInterval = d
		}
	}
	if v := os.Getenv("ATTEND_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
