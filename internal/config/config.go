// Package config defines environment-specific settings for the LudoStore server.
package config

import (
	"log"
	"path/filepath"
	"strings"
	"time"
)

// Build variables, injected at compile time
var (
	BuildEnvironment = "local"
	BuildDate        = "unknown"
	BuildTime        = "unknown"
	// ServiceName is used for logging and as part of the data/log paths.
	ServiceName = "LudoStore"
	// AdminPasswordHashB64 is a base64-encoded bcrypt hash injected via ldflags.
	// If empty, the seeded admin account keeps the development password.
	AdminPasswordHashB64 = ""
	// ServerPort is the default port for the service, can be overridden by environment config.
	ServerPort = "5231"
	// AllowedOrigins is a comma-separated list of allowed websocket origins injected via ldflags.
	// Example: "https://store.example.com,http://localhost:*"
	AllowedOrigins = ""
)

// Environment holds environment-specific settings
type Environment struct {
	Name        string
	ServiceName string

	// Network
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Packaging queue
	QueueCapacity int

	// Logging
	Verbose bool

	// Storefront limits
	MaxUploadBytes  int64
	DownloadsPerMin int
	PurchasesPerMin int

	// Security
	AllowedOrigins []string
}

// LogPath returns the full log file path for this environment.
// Convention: <baseDir>/<ServiceName>/<ServiceName>.log
func (e Environment) LogPath(baseDir string) string {
	return filepath.Join(baseDir, e.ServiceName, e.ServiceName+".log")
}

// DatabasePath returns the bbolt database file path.
func (e Environment) DatabasePath(baseDir string) string {
	return filepath.Join(baseDir, e.ServiceName, "catalog.db")
}

// PayloadDir returns the directory holding packaged game ZIPs.
func (e Environment) PayloadDir(baseDir string) string {
	return filepath.Join(baseDir, e.ServiceName, "payloads")
}

// environments defines available deployment configurations
var environments = map[string]Environment{
	"remote": {
		Name:            "REMOTE",
		ServiceName:     ServiceName,
		ListenAddr:      "0.0.0.0:" + ServerPort,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // payload downloads can be large
		IdleTimeout:     60 * time.Second,
		QueueCapacity:   20,
		Verbose:         false,
		MaxUploadBytes:  512 << 20,
		DownloadsPerMin: 10,
		PurchasesPerMin: 20,
		AllowedOrigins:  []string{"http://localhost:*", "https://localhost:*"},
	},
	"local": {
		Name:            "LOCAL",
		ServiceName:     ServiceName,
		ListenAddr:      "localhost:" + ServerPort,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		QueueCapacity:   20,
		Verbose:         true,
		MaxUploadBytes:  512 << 20,
		DownloadsPerMin: 60,
		PurchasesPerMin: 60,
		AllowedOrigins:  []string{"*"},
	},
}

// GetEnvironment returns config for the specified environment.
func GetEnvironment(env string) Environment {
	cfg, ok := environments[env]
	if !ok {
		log.Printf("[!] Unknown environment '%s', defaulting to 'local'", env)
		cfg = environments["local"]
	}

	// Override allowed origins from ldflags if provided
	if AllowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(AllowedOrigins, ",")
	}

	return cfg
}
