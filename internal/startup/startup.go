package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"face-gallery/internal/logging"
	"face-gallery/internal/memory"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	PhotoDir     string
	CameraFilter string
	CacheDir     string
	DatabaseDir  string

	StoreDriver string
	PostgresURL string

	Port           string
	MetricsPort    string
	MetricsEnabled bool

	BatchInterval time.Duration
	IndexInterval time.Duration

	PageSize        int
	ConcurrentLimit int
	MaxWidth        int
	MaxHeight       int
	KeepFaceless    bool

	ThumbnailSize    int
	ThumbnailFormat  string
	ThumbnailQuality int

	PoolMemoryFraction float64

	DecoderBackend  string
	DetectorBackend string
	DetectorURL     string
	DetectorModels  string
	DetectorTimeout time.Duration
	GalleryPageSize int
	LogHealthChecks bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string
}

// Defaults for values that are validated after parsing.
const (
	DefaultPageSize        = 20
	DefaultConcurrentLimit = 3
	DefaultMaxWidth        = 720
	DefaultMaxHeight       = 1280
	DefaultThumbnailSize   = 200
	DefaultGalleryPageSize = 10
)

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg, err := ParseEnv()
	if err != nil {
		return nil, err
	}
	logConfig(cfg)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.PhotoDir, "photo"); err != nil {
		logging.Warn("  Photo directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// Thumbnails are the pipeline's output, so this directory is required.
	if err := ensureDirectory(cfg.ThumbnailDir, "thumbnail"); err != nil {
		return nil, fmt.Errorf("thumbnail directory error: %w", err)
	}
	if err := testWriteAccess(cfg.ThumbnailDir); err != nil {
		return nil, fmt.Errorf("thumbnail directory is not writable: %w", err)
	}
	logging.Info("  [OK] Thumbnail directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    %s", cfg.StoreDriver)
	logging.Info("    Decoder:     %s", cfg.DecoderBackend)
	logging.Info("    Detector:    %s", cfg.DetectorBackend)
	logging.Info("    Metrics:     %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// ParseEnv reads and validates configuration from the environment without
// touching the filesystem beyond resolving absolute paths.
func ParseEnv() (*Config, error) {
	cfg, err := ReadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadEnv is ParseEnv without validation, for callers that override
// values before validating or only need part of the configuration.
func ReadEnv() (*Config, error) {
	photoDir, err := filepath.Abs(getEnv("PHOTO_DIR", "/photos"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photo directory path: %w", err)
	}
	cacheDir, err := filepath.Abs(getEnv("CACHE_DIR", "/cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	databaseDir, err := filepath.Abs(getEnv("DATABASE_DIR", "/database"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	cfg := &Config{
		PhotoDir:     photoDir,
		CameraFilter: getEnv("CAMERA_FILTER", "DCIM/Camera"),
		CacheDir:     cacheDir,
		DatabaseDir:  databaseDir,

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		PostgresURL: os.Getenv("POSTGRES_URL"),

		Port:           getEnv("PORT", "8080"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		BatchInterval: getEnvDuration("BATCH_INTERVAL", 15*time.Minute),
		IndexInterval: getEnvDuration("INDEX_INTERVAL", 30*time.Minute),

		PageSize:        getEnvPositiveInt("PAGE_SIZE", DefaultPageSize),
		ConcurrentLimit: getEnvPositiveInt("CONCURRENT_LIMIT", DefaultConcurrentLimit),
		MaxWidth:        getEnvPositiveInt("DECODE_MAX_WIDTH", DefaultMaxWidth),
		MaxHeight:       getEnvPositiveInt("DECODE_MAX_HEIGHT", DefaultMaxHeight),
		KeepFaceless:    getEnvBool("KEEP_FACELESS", false),

		ThumbnailSize:    getEnvPositiveInt("THUMBNAIL_SIZE", DefaultThumbnailSize),
		ThumbnailFormat:  strings.ToLower(getEnv("THUMBNAIL_FORMAT", "jpeg")),
		ThumbnailQuality: getEnvPositiveInt("THUMBNAIL_QUALITY", 85),

		PoolMemoryFraction: getEnvFloat("POOL_MEMORY_FRACTION", memory.DefaultPoolFraction),

		DecoderBackend:  strings.ToLower(getEnv("DECODER_BACKEND", "go")),
		DetectorBackend: strings.ToLower(getEnv("DETECTOR_BACKEND", "http")),
		DetectorURL:     os.Getenv("DETECTOR_URL"),
		DetectorModels:  getEnv("DETECTOR_MODELS_DIR", "/models"),
		DetectorTimeout: getEnvDuration("DETECTOR_TIMEOUT", 30*time.Second),
		GalleryPageSize: getEnvPositiveInt("GALLERY_PAGE_SIZE", DefaultGalleryPageSize),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),

		DatabasePath: filepath.Join(databaseDir, "face-gallery.db"),
		ThumbnailDir: filepath.Join(cacheDir, "thumbnails"),
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.DecoderBackend {
	case "go", "vips":
	default:
		return fmt.Errorf("unknown DECODER_BACKEND %q", c.DecoderBackend)
	}

	switch c.DetectorBackend {
	case "http":
		if c.DetectorURL == "" {
			return fmt.Errorf("DETECTOR_BACKEND=http requires DETECTOR_URL")
		}
	case "goface":
	default:
		return fmt.Errorf("unknown DETECTOR_BACKEND %q", c.DetectorBackend)
	}

	switch c.ThumbnailFormat {
	case "jpeg", "jpg", "png":
	default:
		return fmt.Errorf("unknown THUMBNAIL_FORMAT %q", c.ThumbnailFormat)
	}

	if c.ThumbnailQuality > 100 {
		return fmt.Errorf("THUMBNAIL_QUALITY must be 1-100, got %d", c.ThumbnailQuality)
	}
	return nil
}

func logConfig(c *Config) {
	logging.Info("  PHOTO_DIR:           %s", c.PhotoDir)
	logging.Info("  CAMERA_FILTER:       %s", c.CameraFilter)
	logging.Info("  CACHE_DIR:           %s", c.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", c.DatabaseDir)
	logging.Info("  STORE_DRIVER:        %s", c.StoreDriver)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  BATCH_INTERVAL:      %s", c.BatchInterval)
	logging.Info("  INDEX_INTERVAL:      %s", c.IndexInterval)
	logging.Info("  PAGE_SIZE:           %d", c.PageSize)
	logging.Info("  CONCURRENT_LIMIT:    %d", c.ConcurrentLimit)
	logging.Info("  DECODE_MAX:          %dx%d", c.MaxWidth, c.MaxHeight)
	logging.Info("  THUMBNAIL:           %dpx %s q%d", c.ThumbnailSize, c.ThumbnailFormat, c.ThumbnailQuality)
	logging.Info("  POOL_MEMORY_FRACTION:%.3f", c.PoolMemoryFraction)
	logging.Info("  KEEP_FACELESS:       %v", c.KeepFaceless)
	logging.Info("  DECODER_BACKEND:     %s", c.DecoderBackend)
	logging.Info("  DETECTOR_BACKEND:    %s", c.DetectorBackend)
	if c.DetectorBackend == "http" {
		logging.Info("  DETECTOR_URL:        %s", c.DetectorURL)
	} else {
		logging.Info("  DETECTOR_MODELS_DIR: %s", c.DetectorModels)
	}
	logging.Info("  DETECTOR_TIMEOUT:    %s", c.DetectorTimeout)
	logging.Info("  GALLERY_PAGE_SIZE:   %d", c.GalleryPageSize)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(driver string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %s store initialized in %v", driver, duration)
}

// LogPoolInit logs the bitmap pool budget
func LogPoolInit(budget int64) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BITMAP POOL")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Budget: %s", memory.FormatBytes(budget))
}

// LogDetectorInit logs detector backend initialization
func LogDetectorInit(backend string, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DETECTOR INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if err != nil {
		logging.Warn("  Detector %s health check failed: %v", backend, err)
		logging.Warn("  Images will be reported as detect errors until it recovers")
		return
	}
	logging.Info("  [OK] Detector %s ready", backend)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Index interval: %v", interval)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// LogSchedulerInit logs batch scheduler start
func LogSchedulerInit(interval time.Duration) {
	if interval <= 0 {
		logging.Info("  Batch scheduler: manual runs only")
		return
	}
	logging.Info("  Batch scheduler: every %v", interval)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ______                   ______      ____
   / ____/___ _________     / ____/___ _/ / /__  _______  __
  / /_  / __ '/ ___/ _ \   / / __/ __ '/ / / _ \/ ___/ / / /
 / __/ / /_/ / /__/  __/  / /_/ / /_/ / / /  __/ /  / /_/ /
/_/    \__,_/\___/\___/   \____/\__,_/_/_/\___/_/   \__, /
                                                   /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvPositiveInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		logging.Warn("Invalid value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvDuration parses a Go duration. "0" disables the corresponding timer.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid %s %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
