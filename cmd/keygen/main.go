// Command keygen mints an API key: it prints the raw key exactly once and
// stores only the SHA-256 digest.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/engramhq/gateway/internal/domain/auth"
	"github.com/engramhq/gateway/internal/repository"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
		userID      = flag.String("user", "", "owning user id (required)")
		name        = flag.String("name", "", "key label")
		service     = flag.String("service", "engram", "service the key is scoped to")
		ttl         = flag.Duration("ttl", 0, "key lifetime, 0 for no expiry")
	)
	flag.Parse()

	if err := run(*databaseURL, *userID, *name, *service, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
}

func run(databaseURL, userID, name, service string, ttl time.Duration) error {
	if databaseURL == "" {
		return errors.New("database URL is required")
	}
	if userID == "" {
		return errors.New("-user is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	raw, err := randomKey()
	if err != nil {
		return err
	}

	rec := auth.KeyRecord{
		UserID:  userID,
		KeyHash: auth.HashKey(raw),
		Name:    name,
		Service: service,
		Active:  true,
	}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl)
	}

	id, err := repository.NewAPIKeyRepository(pool).Insert(ctx, rec)
	if err != nil {
		return err
	}

	fmt.Printf("key id:  %s\n", id)
	fmt.Printf("api key: %s\n", raw)
	fmt.Println("store the key now; only its hash is kept")
	return nil
}

// randomKey returns a 64-hex-char key with a prefix marking it as an Engram
// key. The prefix keeps raw keys distinguishable from bare digests, so
// EnsureHashed never mistakes one for a pre-hashed value.
func randomKey() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return "egk_" + hex.EncodeToString(buf[:]), nil
}
