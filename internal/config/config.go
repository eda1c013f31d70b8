package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string

	CaptureSource   string // device index, file/stream URL, or udp://:port
	ModelPath       string
	ModelConfigPath string
	InputWidth      int
	InputHeight     int
	ThreatThreshold float64

	RetentionThreshold     float64 // sum of absolute differences
	RetentionMeanThreshold float64 // per-value mean; when > 0 it overrides RetentionThreshold
	KeyFrameDirectory      string
	DatabasePath           string // empty disables the catalog
	ProcessingInterval     int    // Classify every Nth frame (1 = every frame)

	Headless     bool
	WindowName   string
	LogDirectory string

	AlertMessage        string
	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchLogStream string
	MQTTBroker          string
	MQTTTopic           string
	MQTTClientID        string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Prefix    string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", "sentinel"),

		CaptureSource:   getEnv("CAPTURE_SOURCE", "0"),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(".", "model", "optimized_model.onnx")),
		ModelConfigPath: getEnv("MODEL_CONFIG_PATH", ""),
		InputWidth:      getEnvAsInt("INPUT_WIDTH", 64),
		InputHeight:     getEnvAsInt("INPUT_HEIGHT", 64),
		ThreatThreshold: getEnvAsFloat("THREAT_THRESHOLD", 0.5),

		RetentionThreshold:     getEnvAsFloat("RETENTION_THRESHOLD", 5000),
		RetentionMeanThreshold: getEnvAsFloat("RETENTION_MEAN_THRESHOLD", 0),
		KeyFrameDirectory:      getEnv("KEY_FRAME_DIR", "key_frames"),
		DatabasePath:           getEnv("DB_PATH", filepath.Join(".", "data", "keyframes.db")),
		ProcessingInterval:     getEnvAsInt("PROCESSING_INTERVAL", 1),

		Headless:     getEnvAsBool("HEADLESS", false),
		WindowName:   getEnv("WINDOW_NAME", "SentinelVision - Live Feed"),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),

		AlertMessage:        getEnv("ALERT_MESSAGE", "Threat detected in current frame."),
		CloudWatchEnabled:   getEnvAsBool("CLOUDWATCH_ENABLED", false),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "SentinelVisionLogs"),
		CloudWatchLogStream: getEnv("CLOUDWATCH_LOG_STREAM", "MotionDetectionStream"),
		MQTTBroker:          getEnv("MQTT_BROKER", ""),
		MQTTTopic:           getEnv("MQTT_TOPIC", "sentinel/alerts"),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvAsBool("S3_USE_SSL", true),
		S3Prefix:    getEnv("S3_PREFIX", "key_frames"),
	}
}

// Validate rejects settings the detection loop cannot run with.
func (c *Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.ThreatThreshold < 0 || c.ThreatThreshold > 1 {
		return fmt.Errorf("threat threshold must be within [0,1], got %v", c.ThreatThreshold)
	}
	if c.RetentionThreshold < 0 || c.RetentionMeanThreshold < 0 {
		return fmt.Errorf("retention thresholds must not be negative")
	}
	if c.ProcessingInterval < 1 {
		return fmt.Errorf("processing interval must be at least 1, got %d", c.ProcessingInterval)
	}
	if c.KeyFrameDirectory == "" {
		return fmt.Errorf("key frame directory is required")
	}
	return nil
}

// UploadEnabled reports whether saved key frames are copied to object storage.
func (c *Config) UploadEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
