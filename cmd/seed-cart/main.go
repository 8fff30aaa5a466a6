// Command seed-cart writes a device cart into storefront storage so the cart
// is there when the device first connects.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	appkg "github.com/xenking/pandam-storefront/internal/app"
	"github.com/xenking/pandam-storefront/internal/domain/cart"
)

func main() {
	var (
		driver    string
		dsn       string
		deviceID  string
		linesFile string
	)

	flag.StringVar(&driver, "driver", "sqlite", "storage driver: sqlite or postgres")
	flag.StringVar(&dsn, "dsn", "", "SQLite path or PostgreSQL URL (or DATABASE_URL env)")
	flag.StringVar(&deviceID, "device", "", "device id the cart belongs to")
	flag.StringVar(&linesFile, "lines-file", "db/seed/cart.json", "path to a JSON array of cart lines")
	flag.Parse()

	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		slog.Error("storage DSN is required: set --dsn or DATABASE_URL")
		os.Exit(1)
	}
	if deviceID == "" {
		slog.Error("device id is required: set --device")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, appkg.StorageConfig{Driver: driver, DSN: dsn}, deviceID, linesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg appkg.StorageConfig, deviceID, linesFile string) error {
	slog.Info("reading lines file", slog.String("path", linesFile))

	data, err := os.ReadFile(linesFile)
	if err != nil {
		return errors.Wrap(err, "read lines file")
	}
	lines, err := cart.DecodeLines(data)
	if err != nil {
		return errors.Wrap(err, "parse lines")
	}
	for i := range lines {
		lines[i].ServerID = ""
	}

	slog.Info("opening storage", slog.String("driver", cfg.Driver))

	store, err := appkg.OpenStorage(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() { _ = store.Close() }()

	if err := cart.NewKVStorage(store, cart.DeviceKey(deviceID)).Save(ctx, lines); err != nil {
		return errors.Wrap(err, "save cart")
	}

	for _, l := range lines {
		slog.Info("seeded line",
			slog.String("device", deviceID),
			slog.String("product", l.ProductID),
			slog.String("weight", l.Weight),
			slog.Int("quantity", l.Quantity),
		)
	}
	return nil
}
