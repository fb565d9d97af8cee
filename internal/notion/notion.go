// Package notion is the remote store adapter. It maps notes onto pages of a
// single Notion database and page content onto the codec block model.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jomei/notionapi"

	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/codec"
	"github.com/starford/scraps/internal/models"
)

const (
	pageSize    = 100
	appendChunk = 100
)

var (
	ErrUnauthorized = errors.New("notion: unauthorized")
	ErrNotFound     = fmt.Errorf("notion: %w", apperr.ErrNotFound)
)

// Config holds the adapter settings.
type Config struct {
	Token                string
	DatabaseID           string
	TitleProperty        string
	LastModifiedProperty string
	Retries              int
	Timeout              time.Duration
}

type databases interface {
	Get(ctx context.Context, id notionapi.DatabaseID) (*notionapi.Database, error)
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

type pages interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	Get(ctx context.Context, id notionapi.PageID) (*notionapi.Page, error)
	Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

type blocks interface {
	GetChildren(ctx context.Context, id notionapi.BlockID, p *notionapi.Pagination) (*notionapi.GetChildrenResponse, error)
	AppendChildren(ctx context.Context, id notionapi.BlockID, req *notionapi.AppendBlockChildrenRequest) (*notionapi.AppendBlockChildrenResponse, error)
	Delete(ctx context.Context, id notionapi.BlockID) (notionapi.Block, error)
}

// Adapter implements CRUD of notes against a Notion database.
type Adapter struct {
	databaseID   notionapi.DatabaseID
	titleProp    string
	modifiedProp string
	db           databases
	pages        pages
	blocks       blocks
	logger       *slog.Logger

	schemaMu      sync.Mutex
	schemaChecked bool
	writeModified bool
}

// New builds an adapter backed by the Notion HTTP API.
func New(cfg Config, logger *slog.Logger) *Adapter {
	hc := &http.Client{Timeout: cfg.Timeout}
	opts := []notionapi.ClientOption{notionapi.WithHTTPClient(hc)}
	if cfg.Retries > 0 {
		opts = append(opts, notionapi.WithRetry(cfg.Retries))
	}
	client := notionapi.NewClient(notionapi.Token(cfg.Token), opts...)
	return newAdapter(cfg, client.Database, client.Page, client.Block, logger)
}

func newAdapter(cfg Config, db databases, p pages, b blocks, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	title := cfg.TitleProperty
	if title == "" {
		title = "Name"
	}
	return &Adapter{
		databaseID:   notionapi.DatabaseID(cfg.DatabaseID),
		titleProp:    title,
		modifiedProp: cfg.LastModifiedProperty,
		db:           db,
		pages:        p,
		blocks:       b,
		logger:       logger,
	}
}

// TestConnection reports whether the database can be read with the
// configured credentials.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if _, err := a.db.Get(ctx, a.databaseID); err != nil {
		a.logger.Warn("notion: connection test failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// ListAll returns every non-archived page with a non-empty title, each with
// its decoded body.
func (a *Adapter) ListAll(ctx context.Context) ([]models.RemoteDocument, error) {
	var (
		out    []models.RemoteDocument
		cursor notionapi.Cursor
	)
	for {
		resp, err := a.db.Query(ctx, a.databaseID, &notionapi.DatabaseQueryRequest{
			Filter: &notionapi.PropertyFilter{
				Property: a.titleProp,
				RichText: &notionapi.TextFilterCondition{IsNotEmpty: true},
			},
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("notion: query database: %w", classify(err))
		}
		for i := range resp.Results {
			page := &resp.Results[i]
			if page.Archived {
				continue
			}
			doc, err := a.document(ctx, page)
			if err != nil {
				return nil, err
			}
			if doc.Title == "" {
				continue
			}
			out = append(out, doc)
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
	a.logger.Debug("notion: listed documents", slog.Int("count", len(out)))
	return out, nil
}

// Get fetches a single document.
func (a *Adapter) Get(ctx context.Context, remoteID string) (models.RemoteDocument, error) {
	page, err := a.pages.Get(ctx, notionapi.PageID(remoteID))
	if err != nil {
		return models.RemoteDocument{}, fmt.Errorf("notion: get page %s: %w", remoteID, classify(err))
	}
	if page.Archived {
		return models.RemoteDocument{}, fmt.Errorf("notion: get page %s: archived: %w", remoteID, ErrNotFound)
	}
	return a.document(ctx, page)
}

func (a *Adapter) document(ctx context.Context, page *notionapi.Page) (models.RemoteDocument, error) {
	id := page.ID.String()
	children, err := a.children(ctx, notionapi.BlockID(id))
	if err != nil {
		return models.RemoteDocument{}, err
	}
	var decoded []codec.Block
	for _, c := range children {
		if b, ok := fromNotion(c); ok {
			decoded = append(decoded, b)
		}
	}
	return models.RemoteDocument{
		RemoteID:       id,
		Title:          a.title(page.Properties),
		Body:           codec.Decode(decoded),
		LastEditedTime: a.lastEdited(page),
	}, nil
}

func (a *Adapter) children(ctx context.Context, id notionapi.BlockID) ([]notionapi.Block, error) {
	var (
		out    []notionapi.Block
		cursor notionapi.Cursor
	)
	for {
		resp, err := a.blocks.GetChildren(ctx, id, &notionapi.Pagination{StartCursor: cursor, PageSize: pageSize})
		if err != nil {
			return nil, fmt.Errorf("notion: get children of %s: %w", id, classify(err))
		}
		out = append(out, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

func (a *Adapter) title(props notionapi.Properties) string {
	if p, ok := props[a.titleProp].(*notionapi.TitleProperty); ok {
		return plainText(p.Title)
	}
	for _, prop := range props {
		if p, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(p.Title)
		}
	}
	return ""
}

// lastEdited prefers the application-written property over page metadata.
func (a *Adapter) lastEdited(page *notionapi.Page) int64 {
	if a.modifiedProp != "" {
		if p, ok := page.Properties[a.modifiedProp].(*notionapi.NumberProperty); ok && p.Number > 0 {
			return int64(p.Number)
		}
	}
	return page.LastEditedTime.UnixMilli()
}

// Create makes a new page holding body and returns its id.
func (a *Adapter) Create(ctx context.Context, title, body string, lastModified int64) (string, error) {
	props, err := a.properties(ctx, title, lastModified)
	if err != nil {
		return "", err
	}
	content := toNotion(codec.Encode(body))
	first, rest := split(content, appendChunk)
	page, err := a.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: a.databaseID,
		},
		Properties: props,
		Children:   first,
	})
	if err != nil {
		return "", fmt.Errorf("notion: create page: %w", classify(err))
	}
	id := page.ID.String()
	if err := a.appendAll(ctx, notionapi.BlockID(id), rest); err != nil {
		// A partially written page would otherwise be bound and never repaired.
		if aerr := a.Archive(ctx, id); aerr != nil {
			a.logger.Warn("notion: archive partial page failed",
				slog.String("remote_id", id), slog.String("error", aerr.Error()))
		}
		return "", err
	}
	return id, nil
}

// Update replaces the title and body of a page. Blocks matching the encoded
// body from the start are kept; the differing tail is deleted and appended.
func (a *Adapter) Update(ctx context.Context, remoteID, title, body string, lastModified int64) error {
	props, err := a.properties(ctx, title, lastModified)
	if err != nil {
		return err
	}
	wanted := codec.Encode(body)
	existing, err := a.children(ctx, notionapi.BlockID(remoteID))
	if err != nil {
		return err
	}
	keep := commonPrefix(existing, wanted)
	content := toNotion(wanted[keep:])

	for _, b := range existing[keep:] {
		if _, err := a.blocks.Delete(ctx, b.GetID()); err != nil {
			return fmt.Errorf("notion: delete block %s: %w", b.GetID(), classify(err))
		}
	}
	if err := a.appendAll(ctx, notionapi.BlockID(remoteID), content); err != nil {
		return err
	}
	// Properties go last: until the timestamp is written, a failed update
	// still looks older than the local note and is pushed again.
	if _, err := a.pages.Update(ctx, notionapi.PageID(remoteID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
		return fmt.Errorf("notion: update page %s: %w", remoteID, classify(err))
	}
	a.logger.Debug("notion: updated page",
		slog.String("remote_id", remoteID),
		slog.Int("kept", keep),
		slog.Int("deleted", len(existing)-keep),
		slog.Int("appended", len(content)),
	)
	return nil
}

// Archive soft-deletes a page.
func (a *Adapter) Archive(ctx context.Context, remoteID string) error {
	_, err := a.pages.Update(ctx, notionapi.PageID(remoteID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{},
		Archived:   true,
	})
	if err != nil {
		return fmt.Errorf("notion: archive page %s: %w", remoteID, classify(err))
	}
	return nil
}

func (a *Adapter) appendAll(ctx context.Context, id notionapi.BlockID, content []notionapi.Block) error {
	for len(content) > 0 {
		var chunk []notionapi.Block
		chunk, content = split(content, appendChunk)
		if _, err := a.blocks.AppendChildren(ctx, id, &notionapi.AppendBlockChildrenRequest{Children: chunk}); err != nil {
			return fmt.Errorf("notion: append children to %s: %w", id, classify(err))
		}
	}
	return nil
}

func (a *Adapter) properties(ctx context.Context, title string, lastModified int64) (notionapi.Properties, error) {
	props := notionapi.Properties{
		a.titleProp: &notionapi.TitleProperty{Title: richText(title)},
	}
	ok, err := a.modifiedWritable(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		props[a.modifiedProp] = &notionapi.NumberProperty{Number: float64(lastModified)}
	}
	return props, nil
}

// modifiedWritable checks once whether the database declares the
// last-modified property. Failed checks are retried on the next call.
func (a *Adapter) modifiedWritable(ctx context.Context) (bool, error) {
	if a.modifiedProp == "" {
		return false, nil
	}
	a.schemaMu.Lock()
	defer a.schemaMu.Unlock()
	if a.schemaChecked {
		return a.writeModified, nil
	}
	db, err := a.db.Get(ctx, a.databaseID)
	if err != nil {
		return false, fmt.Errorf("notion: get database: %w", classify(err))
	}
	_, a.writeModified = db.Properties[a.modifiedProp]
	a.schemaChecked = true
	if !a.writeModified {
		a.logger.Warn("notion: last modified property missing from database, using page edit time",
			slog.String("property", a.modifiedProp))
	}
	return a.writeModified, nil
}

// commonPrefix counts leading existing blocks that already equal wanted.
func commonPrefix(existing []notionapi.Block, wanted []codec.Block) int {
	n := 0
	for n < len(existing) && n < len(wanted) {
		got, ok := fromNotion(existing[n])
		if !ok || got != wanted[n] {
			break
		}
		n++
	}
	return n
}

func split[T any](s []T, n int) ([]T, []T) {
	if len(s) <= n {
		return s, nil
	}
	return s[:n], s[n:]
}

func classify(err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	return err
}
