package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/dkempf/kartei/internal/config"
	"github.com/dkempf/kartei/internal/storage"
	deckssync "github.com/dkempf/kartei/internal/sync"
	"github.com/dkempf/kartei/internal/web"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DB, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB)

	ctx := context.Background()

	if path, _ := flags.GetString("add-source"); path != "" {
		addSource(ctx, db, path)
		return
	}

	if oneShot, _ := flags.GetBool("sync"); oneShot {
		if err := deckssync.RunSync(ctx, db, cfg.Repos); err != nil {
			slog.Error("sync failed", "error", err)
			os.Exit(1)
		}
		return
	}

	server, err := web.NewServer(db, cfg.Repos)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	slog.Info("listening", "addr", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, server); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// addSource registers a new deck source unless the path is already known.
func addSource(ctx context.Context, db *storage.DB, path string) {
	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		slog.Error("failed to check source", "path", path, "error", err)
		os.Exit(1)
	}
	if existing != nil {
		slog.Info("source already registered", "path", path, "id", existing.ID)
		return
	}
	typ := deckssync.SourceTypeFor(path)
	id, err := db.InsertSource(ctx, path, typ)
	if err != nil {
		slog.Error("failed to add source", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("source added", "id", id, "type", typ, "path", path)
}
