// Command keyimport migrates a legacy API key export into the gateway's
// store. The export is a gzipped CSV with lines of the form
//
//	key_or_hash,user_id,name,service[,expires_at]
//
// The first column may be a raw legacy key or an already-hashed digest;
// EnsureHashed normalizes both to the stored digest form, so this command is
// the one place the transitional unhashed format is still accepted. Re-runs
// are safe: rows whose digest is already stored are skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/engramhq/gateway/internal/domain/auth"
	"github.com/engramhq/gateway/internal/repository"
)

const (
	batchSize     = 1000
	progressEvery = 100_000
)

const insertSQL = `INSERT INTO api_keys (user_id, key_hash, name, service, active, expires_at)
	VALUES ($1, $2, $3, $4, TRUE, $5)
	ON CONFLICT (key_hash) DO NOTHING`

type record struct {
	hash      string
	userID    string
	name      string
	service   string
	expiresAt *time.Time
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
		file        = flag.String("file", "", "gzipped CSV export (required)")
	)
	flag.Parse()

	lg := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(lg, *databaseURL, *file); err != nil {
		lg.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(lg *slog.Logger, databaseURL, file string) error {
	if databaseURL == "" {
		return errors.New("database URL is required")
	}
	if file == "" {
		return errors.New("-file is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	f, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, "open export")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	records := make(chan record, batchSize)
	g, ctx := errgroup.WithContext(ctx)

	// Parser: gzip stream → records.
	g.Go(func() error {
		defer close(records)

		sc := bufio.NewScanner(gz)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for sc.Scan() {
			line++
			rec, err := parseLine(sc.Text())
			if err != nil {
				return errors.Wrapf(err, "line %d", line)
			}
			if rec == nil {
				continue
			}
			select {
			case records <- *rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return errors.Wrap(sc.Err(), "read export")
	})

	// Inserter: records → batched inserts.
	g.Go(func() error {
		total := 0
		batch := &pgx.Batch{}
		flush := func() error {
			if batch.Len() == 0 {
				return nil
			}
			if err := pool.SendBatch(ctx, batch).Close(); err != nil {
				return errors.Wrap(err, "insert batch")
			}
			batch = &pgx.Batch{}
			return nil
		}

		for rec := range records {
			batch.Queue(insertSQL, rec.userID, rec.hash, rec.name, rec.service, rec.expiresAt)
			if batch.Len() >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
			total++
			if total%progressEvery == 0 {
				lg.Info("progress", "imported", total)
			}
		}
		if err := flush(); err != nil {
			return err
		}
		lg.Info("done", "imported", total)
		return nil
	})

	return g.Wait()
}

// parseLine parses one CSV line. Blank lines and comments are skipped.
func parseLine(s string) (*record, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return nil, nil
	}

	fields := strings.Split(s, ",")
	if len(fields) < 4 {
		return nil, errors.Errorf("expected at least 4 fields, got %d", len(fields))
	}

	rec := &record{
		hash:    auth.EnsureHashed(strings.TrimSpace(fields[0])),
		userID:  strings.TrimSpace(fields[1]),
		name:    strings.TrimSpace(fields[2]),
		service: strings.TrimSpace(fields[3]),
	}
	if rec.userID == "" {
		return nil, errors.New("empty user id")
	}
	if len(fields) >= 5 && strings.TrimSpace(fields[4]) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[4]))
		if err != nil {
			return nil, errors.Wrap(err, "parse expires_at")
		}
		rec.expiresAt = &t
	}
	return rec, nil
}
