// Command import loads a local performance CSV into a campaign through the
// same pipeline the HTTP API uses.
//
//	import -campaign <uuid> -file week1.csv [-config config/config.yaml]
//
// Without DATABASE_URL the import runs against an in-memory store seeded from
// stub.seed_file, which validates the file without persisting it.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/copyloop/internal/config"
	"github.com/ignite/copyloop/internal/pkg/logger"
	"github.com/ignite/copyloop/internal/repository/memory"
	"github.com/ignite/copyloop/internal/repository/postgres"
	"github.com/ignite/copyloop/internal/service/performance"
	"github.com/ignite/copyloop/internal/storage"
	_ "github.com/lib/pq"
	"github.com/schollz/progressbar/v3"
)

// progressFile reports read bytes to the bar on the first pass only. It
// stays seekable so the upload can still be archived.
type progressFile struct {
	f       *os.File
	bar     *progressbar.ProgressBar
	rewound bool
}

func (p *progressFile) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if !p.rewound {
		_ = p.bar.Add(n)
	}
	return n, err
}

func (p *progressFile) Seek(offset int64, whence int) (int64, error) {
	p.rewound = true
	_ = p.bar.Finish()
	return p.f.Seek(offset, whence)
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	campaignID := flag.String("campaign", "", "campaign id to import into")
	file := flag.String("file", "", "CSV file to import")
	quiet := flag.Bool("quiet", false, "disable the progress bar")
	flag.Parse()

	if *campaignID == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.SetLevelString(cfg.Log.Level); err != nil {
		log.Printf("Warning: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	svc, closeFn, err := newService(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer closeFn()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open %s: %v", *file, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		log.Fatalf("stat %s: %v", *file, err)
	}

	var body io.Reader = f
	if !*quiet {
		body = &progressFile{f: f, bar: progressbar.DefaultBytes(info.Size(), "importing")}
	}

	res, err := svc.Import(ctx, performance.ImportInput{
		CampaignID: *campaignID,
		Filename:   filepath.Base(*file),
		Body:       body,
	})
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Println()

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if res.RowsFailed > 0 {
		os.Exit(1)
	}
}

func newService(ctx context.Context, cfg *config.Config) (*performance.Service, func(), error) {
	opts := performance.Options{ChunkSize: cfg.Import.ChunkSize}

	if !cfg.Database.Enabled() {
		store := memory.NewStore()
		if cfg.Stub.SeedFile == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL or stub.seed_file is required")
		}
		if _, _, err := store.LoadSeedFile(cfg.Stub.SeedFile); err != nil {
			return nil, nil, err
		}
		log.Printf("Dry run against %s (nothing is persisted)", cfg.Stub.SeedFile)
		return performance.NewService(store, store, store, store, opts), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
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
			opts.Archiver = archiver
		}
	}
	campaigns := postgres.NewCampaignRepo(db)
	svc := performance.NewService(campaigns, postgres.NewAngleRepo(db), postgres.NewRowRepo(db), postgres.NewBatchRepo(db), opts)
	return svc, func() { db.Close() }, nil
}
