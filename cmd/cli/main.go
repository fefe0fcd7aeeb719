package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/almers2006/tresor/internal/client/cli"
	"github.com/almers2006/tresor/internal/client/config"
	"github.com/almers2006/tresor/internal/client/transport"
	"github.com/almers2006/tresor/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	client := transport.NewHTTPClient(cfg.ServerURL, cfg.AccessToken)

	app, err := cli.NewApp(ctx, cfg, client, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Main(ctx)

}
