package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Platform describes one supported source site: a display name plus the host
// fragments used to recognize its URLs.
type Platform struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`
}

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	ResolverEndpoint   string
	TranscribeEndpoint string
	TranscribeModel    string
	MaxUploadBytes     int64

	JobDelayMillis    int
	ExportDelayMillis int

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	Platforms []Platform
}

// fileConfig is the optional YAML overlay (CONFIG_FILE). Only the fields that
// make sense in a checked-in file are exposed there; secrets stay in the env.
type fileConfig struct {
	HTTPAddr           string     `yaml:"http_addr"`
	DataDir            string     `yaml:"data_dir"`
	ResolverEndpoint   string     `yaml:"resolver_endpoint"`
	TranscribeEndpoint string     `yaml:"transcribe_endpoint"`
	TranscribeModel    string     `yaml:"transcribe_model"`
	JobDelayMillis     int        `yaml:"job_delay_millis"`
	ExportDelayMillis  int        `yaml:"export_delay_millis"`
	Platforms          []Platform `yaml:"platforms"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func defaultPlatforms() []Platform {
	return []Platform{
		{Name: "instagram", Hosts: []string{"instagram.com"}},
		{Name: "tiktok", Hosts: []string{"tiktok.com"}},
		{Name: "youtube", Hosts: []string{"youtube.com", "youtu.be"}},
	}
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8082"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),

		ResolverEndpoint:   getenv("RESOLVER_ENDPOINT", "https://api.snapfetch.app/v1/media"),
		TranscribeEndpoint: getenv("TRANSCRIBE_ENDPOINT", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeModel:    getenv("TRANSCRIBE_MODEL", "whisper-1"),
		MaxUploadBytes:     getenvInt64("MAX_UPLOAD_BYTES", 25*1024*1024),

		JobDelayMillis:    getenvInt("JOB_DELAY_MILLIS", 1000),
		ExportDelayMillis: getenvInt("EXPORT_DELAY_MILLIS", 200),

		SupabaseURL:        os.Getenv("NEXT_PUBLIC_SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_STORAGE_BUCKET", "exports"),

		Platforms: defaultPlatforms(),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			panic(fmt.Errorf("config file %s: %w", path, err))
		}
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return err
	}
	if fc.HTTPAddr != "" {
		c.HTTPAddr = fc.HTTPAddr
	}
	if fc.DataDir != "" {
		c.DataDir = fc.DataDir
	}
	if fc.ResolverEndpoint != "" {
		c.ResolverEndpoint = fc.ResolverEndpoint
	}
	if fc.TranscribeEndpoint != "" {
		c.TranscribeEndpoint = fc.TranscribeEndpoint
	}
	if fc.TranscribeModel != "" {
		c.TranscribeModel = fc.TranscribeModel
	}
	if fc.JobDelayMillis > 0 {
		c.JobDelayMillis = fc.JobDelayMillis
	}
	if fc.ExportDelayMillis > 0 {
		c.ExportDelayMillis = fc.ExportDelayMillis
	}
	if len(fc.Platforms) > 0 {
		c.Platforms = fc.Platforms
	}
	return nil
}
