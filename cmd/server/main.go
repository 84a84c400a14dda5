package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/copyloop/internal/api"
	"github.com/ignite/copyloop/internal/config"
	"github.com/ignite/copyloop/internal/generator"
	"github.com/ignite/copyloop/internal/metrics"
	"github.com/ignite/copyloop/internal/pkg/distlock"
	"github.com/ignite/copyloop/internal/pkg/logger"
	"github.com/ignite/copyloop/internal/repository/memory"
	"github.com/ignite/copyloop/internal/repository/postgres"
	"github.com/ignite/copyloop/internal/service/optimization"
	"github.com/ignite/copyloop/internal/service/performance"
	"github.com/ignite/copyloop/internal/storage"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// extractHost returns the host portion of a postgres DSN for logging.
func extractHost(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

// repositories bundles whichever backend the server runs on.
type repositories struct {
	perfCampaigns performance.CampaignRepository
	perfAngles    performance.AngleRepository
	rows          performance.RowRepository
	batches       performance.BatchRepository
	optCampaigns  optimization.CampaignRepository
	optAngles     optimization.AngleRepository
}

func postgresRepositories(db *sql.DB) repositories {
	campaigns := postgres.NewCampaignRepo(db)
	angles := postgres.NewAngleRepo(db)
	return repositories{
		perfCampaigns: campaigns,
		perfAngles:    angles,
		rows:          postgres.NewRowRepo(db),
		batches:       postgres.NewBatchRepo(db),
		optCampaigns:  campaigns,
		optAngles:     angles,
	}
}

func memoryRepositories(store *memory.Store) repositories {
	return repositories{
		perfCampaigns: store,
		perfAngles:    store,
		rows:          store,
		batches:       store,
		optCampaigns:  store,
		optAngles:     store,
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	flag.Parse()

	log.Println("copyloop server: performance import and iteration API")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.SetLevelString(cfg.Log.Level); err != nil {
		log.Printf("Warning: %v, keeping INFO", err)
	}
	if cfg.Log.RedactPII != nil {
		logger.SetRedactPII(*cfg.Log.RedactPII)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage backend
	var db *sql.DB
	var repos repositories
	if cfg.Database.Enabled() {
		log.Printf("DB URL host portion: ...@%s/...", extractHost(cfg.Database.URL))
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(5 * time.Minute)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		pingCancel()
		if err != nil {
			log.Fatalf("Database ping failed: %v", err)
		}
		defer db.Close()
		repos = postgresRepositories(db)
		log.Println("PostgreSQL repositories enabled")
	} else {
		store := memory.NewStore()
		if cfg.Stub.SeedFile != "" {
			nc, na, err := store.LoadSeedFile(cfg.Stub.SeedFile)
			if err != nil {
				log.Fatalf("Failed to load seed file %s: %v", cfg.Stub.SeedFile, err)
			}
			log.Printf("Seeded %d campaign(s) and %d angle(s) from %s", nc, na, cfg.Stub.SeedFile)
		}
		repos = memoryRepositories(store)
		log.Println("DATABASE_URL not set: running on in-memory repositories (data is lost on restart)")
	}

	// Redis for per-campaign optimization locks
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v, falling back to PG advisory locks", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Printf("Redis connected: %s (distributed locking enabled)", cfg.Redis.Addr)
		}
		pingCancel()
	}

	m := metrics.New()

	perfOpts := performance.Options{ChunkSize: cfg.Import.ChunkSize, Recorder: m}
	if cfg.Archive.Enabled() {
		archiver, err := storage.NewS3ArchiverFromConfig(ctx, storage.S3ArchiveConfig{
			Bucket:   cfg.Archive.Bucket,
			Prefix:   cfg.Archive.Prefix,
			Region:   cfg.Archive.Region,
			Compress: cfg.Archive.Compress,
		})
		if err != nil {
			log.Printf("Warning: upload archiving disabled: %v", err)
		} else {
			perfOpts.Archiver = archiver
		}
	}
	perfSvc := performance.NewService(repos.perfCampaigns, repos.perfAngles, repos.rows, repos.batches, perfOpts)

	var gen optimization.Generator
	switch cfg.Generator.Provider {
	case config.ProviderBedrock:
		if cfg.Generator.ModelID == "" {
			cfg.Generator.ModelID = generator.DefaultModelID
		}
		b, err := generator.NewBedrockFromRegion(ctx, cfg.Generator.Region, generator.BedrockOptions{
			ModelID:     cfg.Generator.ModelID,
			MaxTokens:   cfg.Generator.MaxTokens,
			Temperature: cfg.Generator.Temperature,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Bedrock generator: %v", err)
		}
		gen = b
		log.Printf("AWS Bedrock generator initialized (model: %s, region: %s)", cfg.Generator.ModelID, cfg.Generator.Region)
	default:
		gen = generator.NewStatic()
		log.Println("Static generator initialized")
	}

	optOpts := optimization.Options{MaxIterations: cfg.Optimization.MaxIterations, Recorder: m}
	if locks := distlock.NewProvider(redisClient, db, cfg.Optimization.LockTTL()); locks != nil {
		optOpts.Locker = locks
	} else {
		log.Println("No lock backend configured: optimization runs are not serialized across instances")
	}
	optSvc := optimization.NewService(repos.optCampaigns, repos.optAngles, perfSvc, gen, optOpts)

	router := api.SetupRoutes(
		api.NewHandlers(perfSvc, optSvc, cfg.Import.MaxUploadSize),
		api.RouterOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Health:         api.NewHealthChecker(db, redisClient),
			Metrics:        m.Handler(),
			Observer:       m,
		},
	)
	server := api.NewServer(cfg.Server.Addr(), router)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
