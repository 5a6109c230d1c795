// Command warden-reset resets, unlocks or provisions an account directly
// against the user store. It is meant to run on the host next to the
// database and has no network surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/aussiebroadwan/warden/internal/warden/app"
	"github.com/aussiebroadwan/warden/internal/warden/recovery"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
)

func main() {
	cfg := app.LoadConfig()

	var opts recovery.Options
	db := flag.String("db", cfg.Database, "sqlite file path or postgres:// URL")
	pepper := flag.String("pepper", cfg.PepperFile, "path to the password pepper file used by the service")
	flag.StringVar(&opts.Username, "username", "admin", "account to operate on")
	flag.BoolVar(&opts.Create, "create", false, "create the account instead of resetting it")
	flag.BoolVar(&opts.UnlockOnly, "unlock-only", false, "clear the lock and failed attempts without changing the password")
	flag.BoolVar(&opts.AssumeYes, "yes", false, "do not ask for confirmation")
	flag.Parse()

	if err := run(cfg, *db, *pepper, opts); err != nil {
		fmt.Fprintf(os.Stderr, "warden-reset: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg app.Config, db, pepperFile string, opts recovery.Options) error {
	// A pepper created here would not match the service's, and every digest
	// written with it would be rejected at login.
	pepper, err := cryptox.LoadPepper(pepperFile)
	if errors.Is(err, cryptox.ErrPepperNotFound) {
		return fmt.Errorf("%w; pass -pepper with the file the service uses, or start the service once to create it", err)
	}
	if err != nil {
		return fmt.Errorf("load pepper: %w", err)
	}

	st, err := app.OpenStore(db)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := &service.RecoveryService{
		Store:   st,
		Hasher:  &cryptox.LegacyHasher{Primary: cryptox.NewArgon2Hasher(pepper)},
		Lockout: cfg.LockoutPolicy(),
	}

	return recovery.NewTool(svc).Run(context.Background(), opts)
}
