package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/judwhite/go-svc"

	embedded "github.com/aminox1/ludostore"
	"github.com/aminox1/ludostore/internal/auth"
	"github.com/aminox1/ludostore/internal/config"
	"github.com/aminox1/ludostore/internal/server"
	"github.com/aminox1/ludostore/internal/store"
	"github.com/aminox1/ludostore/internal/worker"
)

// GetEnvConfig returns the current environment configuration
func GetEnvConfig() config.Environment {
	return config.GetEnvironment(config.BuildEnvironment)
}

// Program implements svc.Service interface
type Program struct {
	wg         sync.WaitGroup
	quit       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	httpServer *http.Server
	apiServer  *server.Server
	packWorker *worker.Worker
	authMgr    *auth.Manager
	catalog    *store.Store
	startTime  time.Time
}

// Init initializes the service
func (p *Program) Init(_ svc.Environment) error {
	envConfig := GetEnvConfig()

	if err := initLogging(envConfig); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║   🎮 LUDOSTORE - Game Store & Presence Service             ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Printf("[INIT] 🚀 Starting service - Environment: %s", envConfig.Name)
	log.Printf("[INIT] 📅 Build: %s %s", config.BuildDate, config.BuildTime)

	return nil
}

// Start starts the service
func (p *Program) Start() error {
	p.quit = make(chan struct{})
	p.startTime = time.Now()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	cfg := GetEnvConfig()
	base := baseDir()

	// Open the catalog database and seed baseline data
	dbPath := cfg.DatabasePath(base)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	catalog, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening catalog database: %w", err)
	}
	p.catalog = catalog
	log.Printf("[INIT] 🗄️ Database: %s", dbPath)

	if err := catalog.Seed(decodeAdminHash()); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}

	// Initialize auth manager (bound to service context for clean shutdown)
	p.authMgr = auth.NewManager(p.ctx)

	// Initialize packaging worker
	payloadDir := cfg.PayloadDir(base)
	p.packWorker = worker.NewWorker(catalog, worker.Config{
		PayloadDir: payloadDir,
		QueueSize:  cfg.QueueCapacity,
	})
	p.packWorker.Start()

	// Initialize API server (HTTP + presence WebSocket)
	p.apiServer = server.NewServer(catalog, p.authMgr, p.packWorker, server.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		DownloadsPerMin: cfg.DownloadsPerMin,
		PurchasesPerMin: cfg.PurchasesPerMin,
		StagingDir:      filepath.Join(payloadDir, "staging"),
	})

	// Setup embedded filesystem
	webFS, err := fs.Sub(embedded.WebFiles, "internal/assets/web")
	if err != nil {
		log.Fatalf("[FATAL] Error loading web assets: %v", err)
	}
	indexHTML := readWebFile(webFS, "index.html")

	mux := http.NewServeMux()
	p.apiServer.RegisterRoutes(mux)

	// Static site (storefront + presence roster)
	mux.Handle("/css/", http.FileServer(http.FS(webFS)))
	mux.Handle("/js/", http.FileServer(http.FS(webFS)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	})

	// Health is public for monitoring tools
	mux.HandleFunc("GET /health", p.handleHealth)

	p.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		log.Println("┌─────────────────────────────────────────────────────────────┐")
		log.Printf("│ 🎮 LUDOSTORE READY - Environment: %-26s│", cfg.Name)
		log.Printf("│ 🌐 Storefront: http://%s%-26s│", cfg.ListenAddr, "")
		log.Printf("│ 🔌 Presence:   ws://%s/ws/players%-16s│", cfg.ListenAddr, "")
		log.Printf("│ 💚 Health:     http://%s/health%-19s│", cfg.ListenAddr, "")
		log.Println("└─────────────────────────────────────────────────────────────┘")

		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] ❌ Error starting HTTP server: %v", err)
		}
	}()

	return nil
}

// Stop stops the service gracefully
func (p *Program) Stop() error {
	log.Println("[STOP] 🛑 Service shutting down...")

	// 1. Cancel context (stops auth cleanup goroutine)
	p.cancel()

	// 2. Stop packaging worker (drains in-flight job)
	if p.packWorker != nil {
		p.packWorker.Stop()
	}

	// 3. Graceful HTTP shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.httpServer != nil {
		if err := p.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[STOP] ⚠️ HTTP shutdown error: %v", err)
		}
	}

	// 4. Close presence sockets
	if p.apiServer != nil {
		p.apiServer.Shutdown()
	}

	// 5. Close the database last
	if p.catalog != nil {
		if err := p.catalog.Close(); err != nil {
			log.Printf("[STOP] ⚠️ Database close error: %v", err)
		}
	}

	close(p.quit)
	p.wg.Wait()

	uptime := time.Since(p.startTime)
	log.Printf("[STOP] ✅ Service stopped (uptime: %v)", uptime.Round(time.Second))
	return nil
}

func (p *Program) handleHealth(w http.ResponseWriter, _ *http.Request) {
	current, capacity := p.packWorker.QueueStatus()
	stats := p.packWorker.Stats()
	games, categories, users := p.catalog.Stats()

	var utilization float64
	if capacity > 0 {
		utilization = float64(current) / float64(capacity) * 100
	}

	response := HealthResponse{
		Status: "ok",
		Catalog: CatalogStatus{
			Games:      games,
			Categories: categories,
			Users:      users,
		},
		Queue: QueueStatus{
			Current:     current,
			Capacity:    capacity,
			Utilization: utilization,
		},
		Worker: WorkerStatus{
			Running:       stats.IsRunning,
			JobsProcessed: stats.JobsProcessed,
			JobsFailed:    stats.JobsFailed,
		},
		Sockets: p.apiServer.Hub().Count(),
		Build: BuildInfo{
			Env:  config.BuildEnvironment,
			Date: config.BuildDate,
			Time: config.BuildTime,
		},
		Uptime: int(time.Since(p.startTime).Seconds()),
	}

	if !stats.IsRunning {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(response)
}

// baseDir picks the root for logs, database and payloads. PROGRAMDATA on
// Windows services, the user config dir elsewhere.
func baseDir() string {
	if pd := os.Getenv("PROGRAMDATA"); pd != "" {
		return pd
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func initLogging(envConfig config.Environment) error {
	logPath := envConfig.LogPath(baseDir())
	logDir := filepath.Dir(logPath)

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	if err := InitLogger(logPath, envConfig.Verbose); err != nil {
		return err
	}

	log.Printf("[INIT] 📁 Log file: %s", logPath)
	return nil
}

func readWebFile(webFS fs.FS, name string) []byte {
	data, err := fs.ReadFile(webFS, name)
	if err != nil {
		log.Fatalf("[FATAL] Error reading embedded %s: %v", name, err)
	}
	return data
}

// decodeAdminHash returns the ldflags-injected bcrypt hash, or nil when the
// build carries none (development builds fall back to the seeded password).
func decodeAdminHash() []byte {
	if config.AdminPasswordHashB64 == "" {
		return nil
	}
	hash, err := base64.StdEncoding.DecodeString(config.AdminPasswordHashB64)
	if err != nil {
		log.Printf("[INIT] ⚠️ Invalid admin password hash, keeping development default: %v", err)
		return nil
	}
	return hash
}
