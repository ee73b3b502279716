package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tubeinsights/internal/analysis"
	"tubeinsights/internal/cleanup"
	"tubeinsights/internal/generate"
	"tubeinsights/internal/handlers"
	"tubeinsights/internal/llm"
	"tubeinsights/internal/logger"
	"tubeinsights/internal/queue"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/transcript"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	LLM struct {
		OpenAIModel string   `yaml:"openai_model"`
		GroqModels  []string `yaml:"groq_models"`
	} `yaml:"llm"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`
}

func main() {
	godotenv.Load()
	log := logger.New()

	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// one-off OAuth consent flow for Drive uploads
	if len(os.Args) > 1 && os.Args[1] == "authorize-drive" {
		if err := storage.Authorize(config.GoogleDrive.CredentialsFile, config.GoogleDrive.TokenFile); err != nil {
			log.Fatalf("Drive authorization failed: %v", err)
		}
		log.Info("Drive token saved")
		return
	}

	if err := cleanup.EnsureTempDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(config.Storage.Database), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := storage.NewStore(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// LLM providers: OpenAI primary, Groq fallback. At least one key is
	// required to do anything useful.
	var primary, fallback llm.Client
	if c := llm.NewOpenAI(os.Getenv("OPENAI_API_KEY"), config.LLM.OpenAIModel); c != nil {
		primary = c
	}
	if c := llm.NewGroq(os.Getenv("GROQ_API_KEY"), config.LLM.GroqModels); c != nil {
		fallback = c
	}

	engine, err := generate.NewEngine(primary, fallback, store, log)
	if err != nil {
		log.Fatalf("Failed to initialize generation engine: %v", err)
	}

	// Finished reports always land in the output dir; Drive upload is
	// optional on top (needs OAuth setup).
	var driveReporter analysis.Reporter
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.WithError(err).Warn("Google Drive not available, reports stay local")
		} else {
			driveReporter = driveClient
			log.Info("Google Drive report uploads enabled")
		}
	}
	reporter := analysis.MultiReporter(storage.NewLocalReporter(config.Storage.OutputDir), driveReporter)

	orchestrator := analysis.NewOrchestrator(store, engine, reporter, log)

	// Transcript provider chain, cheapest first. Providers without
	// credentials are skipped at fetch time.
	downloader := transcript.NewAudioDownloader()
	chain := transcript.NewChain(log,
		transcript.NewSupadata(os.Getenv("SUPADATA_API_KEY")),
		transcript.NewGroqWhisper(os.Getenv("GROQ_API_KEY"), downloader),
		transcript.NewAssemblyAI(os.Getenv("ASSEMBLYAI_API_KEY")),
		transcript.NewCaptions(),
		transcript.NewOpenAIWhisper(os.Getenv("OPENAI_API_KEY"), downloader),
	)

	workerPool := queue.NewWorkerPool(config.Workers.Count, store, chain, orchestrator, log)
	workerPool.Start()

	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.TempDir,
		config.Cleanup.IntervalMinutes,
		config.Cleanup.MaxAgeHours,
		log,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	videoHandler := handlers.NewVideoHandler(store, workerPool, log)
	jobHandler := handlers.NewJobHandler(store, workerPool, log)
	progressHandler := handlers.NewProgressHandler(store, log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/videos", videoHandler.Ingest)
	app.Get("/videos/:id/transcript", videoHandler.Transcript)
	app.Post("/jobs/:id/run", jobHandler.Run)
	app.Get("/jobs/:id", jobHandler.Get)
	app.Get("/ws/jobs/:id", websocket.New(progressHandler.Handle))

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down gracefully...")
		app.Shutdown()
		workerPool.Stop()
	}()

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Infof("Server starting on %s", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
