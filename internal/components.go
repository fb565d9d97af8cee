package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/scraps/internal/aitransform"
	"github.com/starford/scraps/internal/kv"
	"github.com/starford/scraps/internal/notes"
	"github.com/starford/scraps/internal/noteservice"
	"github.com/starford/scraps/internal/notion"
	"github.com/starford/scraps/internal/syncer"
	"github.com/starford/scraps/internal/watch"
)

// NewLogger builds the JSON logger. Output goes to the rotated log file
// when one is configured, otherwise to w. The returned closer flushes the
// file and is a no-op for w.
func NewLogger(cfg ApplicationConfig, w io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		w, closer = lj, lj
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})), closer
}

// Components are the long-lived parts shared by the server, the MCP server
// and one-shot CLI commands.
type Components struct {
	KV      kv.Store
	Notes   *notes.Store
	Engine  *syncer.Engine
	Service *noteservice.Service

	// Notion is nil when the remote is not configured.
	Notion *notion.Adapter
	// NotReady explains why sync cannot run. It wraps apperr.ErrNotConfigured.
	NotReady error
}

// Open builds the components from cfg. An incomplete remote configuration
// is not an error: the engine is built over a remote that refuses every
// call and NotReady is set.
func Open(cfg *Config, logger *slog.Logger) (*Components, error) {
	if cfg.Store.Driver == kv.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	kvs, err := kv.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	c := &Components{KV: kvs, Notes: notes.New(kvs)}

	var (
		remote    syncer.Remote
		transform syncer.Transformer = aitransform.Passthrough{}
	)
	if c.NotReady = cfg.Ready(); c.NotReady != nil {
		remote = syncer.Unavailable(c.NotReady)
	} else {
		c.Notion = notion.New(notion.Config{
			Token:                cfg.Notion.Token,
			DatabaseID:           cfg.Notion.DatabaseID,
			TitleProperty:        cfg.Notion.TitleProperty,
			LastModifiedProperty: cfg.Notion.LastModifiedProperty,
			Retries:              cfg.Notion.Retries,
			Timeout:              cfg.Notion.Timeout,
		}, logger)
		remote = c.Notion

		if cfg.AI.Enabled {
			p, err := aitransform.New(cfg.AI.ProviderConfig())
			if err != nil {
				kvs.Close()
				return nil, fmt.Errorf("init ai provider: %w", err)
			}
			transform = aitransform.NewService(p, logger)
		}
	}

	c.Engine = syncer.New(c.Notes, kvs, remote, transform,
		syncer.WithLogger(logger),
		syncer.WithFailurePolicy(cfg.AI.OnFailure),
		syncer.WithPushConcurrency(cfg.Sync.PushConcurrency),
	)
	c.Service = noteservice.NewService(c.Notes, c.Engine)
	return c, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// watchTarget returns the files that change when another process writes
// the store.
func watchTarget(cfg StoreConfig) watch.Target {
	if cfg.Driver == kv.DriverFile {
		return watch.FileTarget(cfg.Path)
	}
	return watch.SQLiteTarget(cfg.Path)
}

// Close releases the store.
func (c *Components) Close() error {
	return c.KV.Close()
}
