package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default tool argument templates. Placeholders are substituted per argument.
const (
	DefaultUpscaleArgs = "-i {inputFile} -o {outputFile} -n {modelName} -f png -m {modelsPath}"
	DefaultWebPArgs    = "-q 80 {inputFile} -o {outputFile}"
	DefaultAvifArgs    = "-y -i {inputFile} -c:v {codec} -still-picture 1 -crf 35 -b:v 0 -cpu-used 4 -threads 8 {outputFile}"
	DefaultAvifCodec   = "libaom-av1"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port         string
	AppEnv       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int

	// Job execution
	MaxConcurrentJobs int           // soft limit; runs past it start anyway and are logged
	JobRetention      time.Duration // how long finished jobs stay in memory
	StartPause        time.Duration // pause after the "found N images" message
	FolderPause       time.Duration // pause after entering a folder

	// External tools
	ToolsDir    string
	ModelsDir   string
	UpscaleArgs string
	WebPArgs    string
	AvifArgs    string
	AvifCodec   string

	// Buffer pool configuration (tool output capture)
	BufferPoolSize int
	BufferSize     int

	// Persistence
	DataDir       string
	ArchiveTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging configuration
	EnablePerformanceLogs bool

	// Development settings
	Debug bool

	// Production settings
	EnableCORS        bool
	EnableHealthCheck bool
}

// Load loads configuration from environment variables and .env file
func Load() *Config {
	// Try to load .env file (optional)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: .env file not found: %v", err)
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	toolsDir := getEnv("TOOLS_DIR", executableDir())

	return &Config{
		Port:         getEnv("PORT", "5001"),
		AppEnv:       getEnv("APP_ENV", "development"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
		BodyLimit:    getInt("BODY_LIMIT", 1024*1024),

		MaxConcurrentJobs: getJobCount(),
		JobRetention:      getDuration("JOB_RETENTION", 24*time.Hour),
		StartPause:        getDuration("START_PAUSE", time.Second),
		FolderPause:       getDuration("FOLDER_PAUSE", 500*time.Millisecond),

		ToolsDir:    toolsDir,
		ModelsDir:   getEnv("MODELS_DIR", filepath.Join(toolsDir, "models")),
		UpscaleArgs: getEnv("UPSCALE_ARGS", DefaultUpscaleArgs),
		WebPArgs:    getEnv("WEBP_ARGS", DefaultWebPArgs),
		AvifArgs:    getEnv("AVIF_ARGS", DefaultAvifArgs),
		AvifCodec:   getEnv("AVIF_CODEC", DefaultAvifCodec),

		BufferPoolSize: getInt("BUFFER_POOL_SIZE", 16),
		BufferSize:     getInt("BUFFER_SIZE", 32*1024),

		DataDir:       getEnv("DATA_DIR", defaultDataDir()),
		ArchiveTTL:    getDuration("ARCHIVE_TTL", 7*24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		EnablePerformanceLogs: getBool("ENABLE_PERFORMANCE_LOGS", true),

		Debug: getBool("DEBUG", false),

		EnableCORS:        getBool("ENABLE_CORS", true),
		EnableHealthCheck: getBool("ENABLE_HEALTH_CHECK", true),
	}
}

// LogFilePath is the durable transformation log inside DataDir
func (c *Config) LogFilePath() string {
	return filepath.Join(c.DataDir, "processing_log.txt")
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

func getJobCount() int {
	if value := os.Getenv("MAX_CONCURRENT_JOBS"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}

	// Each job already runs multi-threaded external tools
	numCPU := runtime.NumCPU()
	if numCPU < 4 {
		return 1
	}
	return numCPU / 4
}

// executableDir is where the bundled tools live by convention
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ImageBatch")
	}
	return filepath.Join(os.TempDir(), "ImageBatch")
}
