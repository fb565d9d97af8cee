// Package syncer reconciles the local note collection with the remote
// document store. A pass pulls the full remote set, drops notes whose
// documents vanished, decides per note with last-modified-wins and then
// pushes and pulls what differs.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/codec"
	"github.com/starford/scraps/internal/kv"
	"github.com/starford/scraps/internal/models"
	"github.com/starford/scraps/internal/notes"
	"github.com/starford/scraps/internal/status"
)

// Remote is the remote document store.
type Remote interface {
	ListAll(ctx context.Context) ([]models.RemoteDocument, error)
	Create(ctx context.Context, title, body string, lastModified int64) (string, error)
	Update(ctx context.Context, remoteID, title, body string, lastModified int64) error
	Archive(ctx context.Context, remoteID string) error
}

// Transformer rewrites a body before it is pushed.
type Transformer interface {
	Transform(ctx context.Context, prev, next string) (string, error)
}

// Report is the summary of one pass.
type Report = models.SyncReport

// FailurePolicy decides what happens to a push when the transform fails.
type FailurePolicy string

const (
	// FailSkip skips the push; the note is retried on the next pass.
	FailSkip FailurePolicy = "skip"
	// FailOriginal pushes the untransformed body.
	FailOriginal FailurePolicy = "original"
)

// ErrEmptyBlocks is reported when a non-blank body encodes to no blocks.
var ErrEmptyBlocks = errors.New("syncer: body encodes to no blocks")

// Note-level operations.
const (
	OpArchive     = "archive"
	OpDeleteLocal = "delete-local"
	OpTransform   = "transform"
	OpEncode      = "encode"
	OpCreate      = "create"
	OpUpdate      = "update"
	OpRecord      = "record"
	OpPull        = "pull"
)

// NoteError is a failure isolated to one note.
type NoteError struct {
	NoteID   string
	Title    string
	RemoteID string
	Op       string
	Err      error
}

func (e *NoteError) Error() string {
	id := e.NoteID
	if id == "" {
		id = e.RemoteID
	}
	return fmt.Sprintf("syncer: %s %s (%q): %v", e.Op, id, e.Title, e.Err)
}

func (e *NoteError) Unwrap() error { return e.Err }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFailurePolicy sets the transform failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithPushConcurrency bounds the number of notes pushed at once.
func WithPushConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithStatus sets the reporter updated by each pass.
func WithStatus(r *status.Reporter) Option {
	return func(e *Engine) { e.status = r }
}

// Engine runs synchronization passes. At most one pass, or one guarded
// mutation, runs at a time.
type Engine struct {
	notes       *notes.Store
	remote      Remote
	transform   Transformer
	tombstones  idSet
	archives    idSet
	status      *status.Reporter
	logger      *slog.Logger
	policy      FailurePolicy
	concurrency int
	now         func() time.Time

	guard sync.Mutex
}

// New returns an Engine over the given collaborators. The tombstone set and
// the pending archive queue live in kvs next to the notes.
func New(store *notes.Store, kvs kv.Store, remote Remote, transform Transformer, opts ...Option) *Engine {
	e := &Engine{
		notes:       store,
		remote:      remote,
		transform:   transform,
		tombstones:  idSet{kv: kvs, key: TombstonesKey},
		archives:    idSet{kv: kvs, key: PendingArchivesKey},
		logger:      slog.Default(),
		policy:      FailSkip,
		concurrency: 1,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.status == nil {
		e.status = status.New()
	}
	return e
}

// Status returns the engine's reporter.
func (e *Engine) Status() *status.Reporter { return e.status }

// Sync runs one pass. It returns apperr.ErrSyncInProgress without waiting
// when another pass or guarded mutation holds the engine. A non-nil error
// other than that means the pass aborted; note-level failures are only
// listed in the report.
func (e *Engine) Sync(ctx context.Context) (*Report, error) {
	if !e.guard.TryLock() {
		return nil, apperr.ErrSyncInProgress
	}
	defer e.guard.Unlock()
	return e.run(ctx)
}

// Start begins a pass in the background and returns once the engine is
// held, or ErrSyncInProgress when it is busy.
func (e *Engine) Start(ctx context.Context) error {
	if !e.guard.TryLock() {
		return apperr.ErrSyncInProgress
	}
	go func() {
		defer e.guard.Unlock()
		_, _ = e.run(context.WithoutCancel(ctx))
	}()
	return nil
}

// Exclusive runs fn while holding the engine, so it never interleaves
// with a pass.
func (e *Engine) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if !e.guard.TryLock() {
		return apperr.ErrSyncInProgress
	}
	defer e.guard.Unlock()
	return fn(ctx)
}

// Wait blocks until no pass or guarded mutation holds the engine.
func (e *Engine) Wait() {
	e.guard.Lock()
	defer e.guard.Unlock()
}

func (e *Engine) run(ctx context.Context) (*Report, error) {
	rep := &Report{StartedAt: e.now()}
	e.status.Begin()
	e.logger.Info("sync: pass started")

	err := e.pass(ctx, rep)
	rep.Duration = e.now().Sub(rep.StartedAt)
	e.status.Finish(rep, err)

	if err != nil {
		e.logger.Error("sync: pass aborted", slog.String("error", err.Error()))
		return rep, err
	}
	e.logger.Info("sync: pass finished",
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("pulled", rep.Pulled+rep.PulledNew),
		slog.Int("deleted_local", rep.DeletedLocal),
		slog.Int("archived", rep.Archived),
		slog.Int("failures", len(rep.Failures)),
		slog.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// recorder collects note-level outcomes from concurrent pushes.
type recorder struct {
	mu     sync.Mutex
	rep    *Report
	logger *slog.Logger
}

func (r *recorder) count(fn func(*Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.rep)
}

func (r *recorder) fail(ne *NoteError) {
	r.logger.Warn("sync: note failed",
		slog.String("note_id", ne.NoteID),
		slog.String("title", ne.Title),
		slog.String("remote_id", ne.RemoteID),
		slog.String("op", ne.Op),
		slog.String("error", ne.Err.Error()),
	)
	r.count(func(rep *Report) {
		rep.Failures = append(rep.Failures, models.SyncFailure{
			NoteID:   ne.NoteID,
			Title:    ne.Title,
			RemoteID: ne.RemoteID,
			Op:       ne.Op,
			Error:    ne.Err.Error(),
		})
	})
}

func (e *Engine) pass(ctx context.Context, rep *Report) error {
	rec := &recorder{rep: rep, logger: e.logger}

	if err := e.flushArchives(ctx, rec); err != nil {
		return err
	}

	remote, err := e.remote.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("syncer: pull: %w", err)
	}
	local, err := e.notes.List(ctx)
	if err != nil {
		return fmt.Errorf("syncer: read local: %w", err)
	}
	dead, err := e.tombstones.set(ctx)
	if err != nil {
		return err
	}

	plan := Decide(local, remote, dead)
	e.logger.Debug("sync: plan",
		slog.Int("vanished", len(plan.Vanished)),
		slog.Int("creates", len(plan.Creates)),
		slog.Int("updates", len(plan.Updates)),
		slog.Int("pulls", len(plan.Pulls)),
		slog.Int("pull_new", len(plan.PullNew)),
		slog.Int("frozen", len(plan.Frozen)),
	)
	rep.Skipped += len(plan.Frozen)

	e.dropVanished(ctx, plan.Vanished, rec)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, n := range plan.Creates {
		g.Go(func() error {
			e.push(ctx, n, false, rec)
			return nil
		})
	}
	for _, u := range plan.Updates {
		g.Go(func() error {
			e.push(ctx, u.Note, true, rec)
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range plan.Pulls {
		e.pull(ctx, p.Remote, &p.Note, rec)
	}
	for _, doc := range plan.PullNew {
		e.pull(ctx, doc, nil, rec)
	}
	return nil
}

// flushArchives archives queued remote ids. Ids the remote no longer knows
// count as archived.
func (e *Engine) flushArchives(ctx context.Context, rec *recorder) error {
	queued, err := e.archives.list(ctx)
	if err != nil {
		return err
	}
	for _, id := range queued {
		err := guarded(func() error { return e.remote.Archive(ctx, id) })
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			rec.fail(&NoteError{RemoteID: id, Op: OpArchive, Err: err})
			continue
		}
		if _, err := e.archives.remove(ctx, id); err != nil {
			return err
		}
		rec.count(func(r *Report) { r.Archived++ })
	}
	return nil
}

func (e *Engine) dropVanished(ctx context.Context, vanished []models.Note, rec *recorder) {
	for _, n := range vanished {
		if err := e.tombstones.add(ctx, n.RemoteID); err != nil {
			rec.fail(&NoteError{NoteID: n.ID, Title: n.Title, RemoteID: n.RemoteID, Op: OpDeleteLocal, Err: err})
			continue
		}
		if _, err := e.notes.Forget(ctx, n.RemoteID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			rec.fail(&NoteError{NoteID: n.ID, Title: n.Title, RemoteID: n.RemoteID, Op: OpDeleteLocal, Err: err})
			continue
		}
		e.logger.Info("sync: remote document vanished, note removed",
			slog.String("note_id", n.ID),
			slog.String("remote_id", n.RemoteID),
		)
		rec.count(func(r *Report) { r.DeletedLocal++ })
	}
}

// push runs transform, remote write and local update for one note. Any
// failure leaves the local note as it was.
func (e *Engine) push(ctx context.Context, n models.Note, update bool, rec *recorder) {
	fail := func(op string, err error) {
		rec.fail(&NoteError{NoteID: n.ID, Title: n.Title, RemoteID: n.RemoteID, Op: op, Err: err})
	}

	var out string
	err := guarded(func() error {
		var err error
		out, err = e.transform.Transform(ctx, n.SyncedBody, n.Body)
		return err
	})
	if err != nil {
		if e.policy != FailOriginal || strings.TrimSpace(n.Body) == "" {
			fail(OpTransform, err)
			rec.count(func(r *Report) { r.Skipped++ })
			return
		}
		e.logger.Warn("sync: transform failed, pushing original body",
			slog.String("note_id", n.ID),
			slog.String("error", err.Error()),
		)
		out = n.Body
	}
	if strings.TrimSpace(out) != "" && len(codec.Encode(out)) == 0 {
		fail(OpEncode, ErrEmptyBlocks)
		return
	}

	title := n.Title
	if strings.TrimSpace(title) == "" {
		title = notes.DefaultTitle
	}

	remoteID := n.RemoteID
	op := OpCreate
	if update {
		op = OpUpdate
		err = guarded(func() error { return e.remote.Update(ctx, n.RemoteID, title, out, n.LastModified) })
	} else {
		err = guarded(func() error {
			var err error
			remoteID, err = e.remote.Create(ctx, title, out, n.LastModified)
			return err
		})
	}
	if err != nil {
		fail(op, err)
		return
	}

	if _, err := e.notes.MarkPushed(ctx, n.ID, remoteID, out, n.LastModified); err != nil {
		rec.fail(&NoteError{NoteID: n.ID, Title: n.Title, RemoteID: remoteID, Op: OpRecord, Err: err})
		return
	}
	rec.count(func(r *Report) {
		if update {
			r.Updated++
		} else {
			r.Created++
		}
	})
}

// pull writes doc into the local store. existing is nil for new documents.
func (e *Engine) pull(ctx context.Context, doc models.RemoteDocument, existing *models.Note, rec *recorder) {
	if _, _, err := e.notes.ApplyRemote(ctx, doc); err != nil {
		ne := &NoteError{RemoteID: doc.RemoteID, Title: doc.Title, Op: OpPull, Err: err}
		if existing != nil {
			ne.NoteID = existing.ID
		}
		rec.fail(ne)
		return
	}
	rec.count(func(r *Report) {
		if existing != nil {
			r.Pulled++
		} else {
			r.PulledNew++
		}
	})
}

// guarded converts a panic in fn into an error.
func guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// DeleteNote removes a local note. A bound note is tombstoned and its
// remote document queued for archive on the next pass.
func (e *Engine) DeleteNote(ctx context.Context, id string) (models.Note, error) {
	var removed models.Note
	err := e.Exclusive(ctx, func(ctx context.Context) error {
		n, err := e.notes.Delete(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		if !n.Bound() {
			return nil
		}
		if err := e.tombstones.add(ctx, n.RemoteID); err != nil {
			return err
		}
		return e.archives.add(ctx, n.RemoteID)
	})
	return removed, err
}

// Tombstones lists the tombstoned remote ids.
func (e *Engine) Tombstones(ctx context.Context) ([]string, error) {
	return e.tombstones.list(ctx)
}

// ClearTombstone forgets a tombstoned id so a later pass may pull the
// document again if it still exists. A queued archive for it is dropped.
func (e *Engine) ClearTombstone(ctx context.Context, remoteID string) (bool, error) {
	var removed bool
	err := e.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		if removed, err = e.tombstones.remove(ctx, remoteID); err != nil {
			return err
		}
		_, err = e.archives.remove(ctx, remoteID)
		return err
	})
	return removed, err
}

// PendingArchives lists remote ids waiting to be archived.
func (e *Engine) PendingArchives(ctx context.Context) ([]string, error) {
	return e.archives.list(ctx)
}

type unavailable struct{ err error }

// Unavailable returns a Remote whose every call fails with err. It lets the
// engine guard local edits while the remote is not configured.
func Unavailable(err error) Remote { return unavailable{err: err} }

func (u unavailable) ListAll(context.Context) ([]models.RemoteDocument, error) { return nil, u.err }
func (u unavailable) Create(context.Context, string, string, int64) (string, error) {
	return "", u.err
}
func (u unavailable) Update(context.Context, string, string, string, int64) error { return u.err }
func (u unavailable) Archive(context.Context, string) error                       { return u.err }
