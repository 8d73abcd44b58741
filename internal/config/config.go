package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ModelPath      string
	ModelInputSize int
	ClassNames     []string
	CameraSource   string // device index ("0") or stream/file URL
	Confidence     float64
	NMSThreshold   float64
	BoxThickness   int

	OutputDirectory string
	SaveFile        string
	DatabasePath    string // empty disables persistence

	PrintKey       string
	StopKey        string
	DedupPolicy    string
	HourlyFlush    bool
	FrameInterval  time.Duration
	MaxFrameErrors int

	Port         int // 0 disables the HTTP surface
	APIToken     string
	LogDirectory string
	LogLevel     string

	KafkaBrokers      []string
	KafkaTopic        string
	NotificationTitle string
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "config: ignoring env file: %v\n", err)
	}

	return &Config{
		ModelPath:         getEnv("MODEL_PATH", "trash.onnx"),
		ModelInputSize:    getEnvAsInt("MODEL_INPUT_SIZE", 640),
		ClassNames:        getEnvAsList("CLASS_NAMES", []string{"trash"}),
		CameraSource:      getEnv("CAMERA_SOURCE", "0"),
		Confidence:        getEnvAsFloat("CONFIDENCE", 0.65),
		NMSThreshold:      getEnvAsFloat("NMS_THRESHOLD", 0.45),
		BoxThickness:      getEnvAsInt("BOX_THICKNESS", 5),
		OutputDirectory:   getEnv("OUTPUT_DIR", "output"),
		SaveFile:          getEnv("SAVEFILE", "record.csv"),
		DatabasePath:      getEnv("DB_PATH", filepath.Join("output", "detections.db")),
		PrintKey:          getEnv("PRINT_KEY", "q"),
		StopKey:           getEnv("STOP_KEY", "p"),
		DedupPolicy:       getEnv("DEDUP_POLICY", "count-change"),
		HourlyFlush:       getEnvAsBool("HOURLY_FLUSH", true),
		FrameInterval:     getEnvAsDuration("FRAME_INTERVAL", 0),
		MaxFrameErrors:    getEnvAsInt("MAX_FRAME_ERRORS", 50),
		Port:              getEnvAsInt("PORT", 8080),
		APIToken:          getEnv("API_TOKEN", ""),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:      getEnvAsList("KAFKA_BROKERS", nil),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "trash-detections"),
		NotificationTitle: getEnv("NOTIFY_TITLE", "Trash Detected!!"),
	}
}

// Validate rejects settings the detector cannot run with.
func (c *Config) Validate() error {
	if c.SaveFile == "" {
		return fmt.Errorf("SAVEFILE must not be empty")
	}
	if strings.ContainsAny(c.SaveFile, `/\`) {
		return fmt.Errorf("SAVEFILE must be a file name, got %q", c.SaveFile)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		return fmt.Errorf("CONFIDENCE must be in (0, 1], got %v", c.Confidence)
	}
	if c.ModelInputSize <= 0 {
		return fmt.Errorf("MODEL_INPUT_SIZE must be positive, got %d", c.ModelInputSize)
	}
	if c.PrintKey == "" || c.StopKey == "" {
		return fmt.Errorf("PRINT_KEY and STOP_KEY must be set")
	}
	if strings.EqualFold(c.PrintKey, c.StopKey) {
		return fmt.Errorf("PRINT_KEY and STOP_KEY must differ, both are %q", c.PrintKey)
	}
	switch c.DedupPolicy {
	case "count-change", "new-label":
	default:
		return fmt.Errorf("unknown DEDUP_POLICY %q", c.DedupPolicy)
	}
	return nil
}

// RecordPath is where flushes write the session log.
func (c *Config) RecordPath() string {
	return filepath.Join(c.OutputDirectory, c.SaveFile)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
