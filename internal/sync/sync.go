// Package sync reconciles the card pool with the registered deck sources:
// local directories and git repositories containing CSV or JSON deck files.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkempf/kartei/internal/domain"
	"github.com/dkempf/kartei/internal/gitsource"
	"github.com/dkempf/kartei/internal/importer"
	"github.com/dkempf/kartei/internal/storage"
)

// SourceTypeFor classifies a source path as "git" or "local".
func SourceTypeFor(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}

// RunSync reconciles every registered source against the card pool.
func RunSync(ctx context.Context, db *storage.DB, reposDir string) error {
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no deck sources configured")
		return nil
	}

	if err := os.MkdirAll(reposDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		scanPath := source.Path
		if source.Type == "git" {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("error determining local path for deck repo", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(source.Path, localRepoPath); err != nil {
				slog.Error("error syncing deck repo", "url", source.Path, "error", err)
				continue
			}
			scanPath = localRepoPath
		}

		reconcileSource(ctx, db, source, scanPath)
	}
	slog.Info("sync complete")
	return nil
}

// reconcileSource walks a directory for deck files, upserts their cards and
// prunes cards whose deck entries vanished.
func reconcileSource(ctx context.Context, db *storage.DB, source storage.Source, scanPath string) {
	var parsed []domain.Card
	var parseErrors []error
	foundIDs := make(map[int64]bool)

	walkErr := filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDeckFile(d.Name()) {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("opening %s: %w", path, err))
			return nil
		}
		defer f.Close()

		cards, err := importer.Parse(f, importer.DetectFormat(d.Name()))
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		for _, c := range cards {
			parsed = append(parsed, c)
			foundIDs[c.ID] = true
		}
		return nil
	})
	if walkErr != nil {
		slog.Error("error walking source", "path", scanPath, "error", walkErr)
		return
	}

	if len(parsed) > 0 {
		if err := db.PutCards(ctx, parsed, source.ID); err != nil {
			slog.Error("error upserting cards", "source_id", source.ID, "error", err)
			return
		}
	}

	ids, err := db.GetCardIDsBySource(ctx, source.ID)
	if err != nil {
		slog.Error("error getting cards for source", "source_id", source.ID, "error", err)
		return
	}
	var orphaned int
	for _, id := range ids {
		if !foundIDs[id] {
			orphaned++
			if err := db.DeleteCard(ctx, id); err != nil {
				slog.Warn("failed to delete orphaned card", "id", id, "error", err)
			}
		}
	}

	if err := db.UpdateSourceLastScanned(ctx, source.ID); err != nil {
		slog.Warn("failed to update last scanned", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", scanPath,
		"parsed_cards", len(parsed),
		"orphaned_deleted", orphaned,
		"errors", len(parseErrors),
	)
	for _, e := range parseErrors {
		slog.Warn("deck error", "error", e)
	}
}

func isDeckFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".json")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// SSH-style URL: git@host:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitized := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitized), nil
}
