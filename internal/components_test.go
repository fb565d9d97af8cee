package internal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/scraps/internal/apperr"
)

func TestOpenWithoutRemote(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "nested", "scraps.db")

	var buf bytes.Buffer
	logger, _ := NewLogger(cfg.App, &buf)
	c, err := Open(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if !errors.Is(c.NotReady, apperr.ErrNotConfigured) {
		t.Fatalf("NotReady = %v, want ErrNotConfigured", c.NotReady)
	}
	if c.Notion != nil {
		t.Error("Notion adapter built without credentials")
	}

	ctx := context.Background()
	// Local edits work without a remote.
	n, err := c.Service.CreateNote(ctx, "offline", "body")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Service.GetNote(ctx, n.ID); err != nil {
		t.Fatal(err)
	}

	_, err = c.Engine.Sync(ctx)
	if !errors.Is(err, apperr.ErrNotConfigured) {
		t.Fatalf("Sync() = %v, want ErrNotConfigured", err)
	}
}

func TestOpenFileStore(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = "file"
	cfg.Store.Path = t.TempDir()
	cfg.Notion.Token, cfg.Notion.DatabaseID = "tok", "db"

	var buf bytes.Buffer
	logger, _ := NewLogger(cfg.App, &buf)
	c, err := Open(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.NotReady != nil || c.Notion == nil {
		t.Fatalf("NotReady = %v, Notion = %v", c.NotReady, c.Notion)
	}
	if !watchTarget(cfg.Store).Match("notes.json") {
		t.Error("file store target should match notes.json")
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := NewLogger(ApplicationConfig{}, &buf)
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestNewLoggerRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraps.log")
	var buf bytes.Buffer
	logger, closer := NewLogger(ApplicationConfig{LogFile: path}, &buf)
	logger.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("fallback writer used: %q", buf.String())
	}
}
