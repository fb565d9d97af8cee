package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/scraps/internal/aitransform"
	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/kv"
	"github.com/starford/scraps/internal/models"
	"github.com/starford/scraps/internal/notes"
	"github.com/starford/scraps/internal/status"
	"github.com/starford/scraps/internal/testutil"
)

type transformFunc func(ctx context.Context, prev, next string) (string, error)

func (f transformFunc) Transform(ctx context.Context, prev, next string) (string, error) {
	return f(ctx, prev, next)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.UnixMilli(ms)
}

type harness struct {
	kv     kv.Store
	notes  *notes.Store
	remote *testutil.FakeRemote
	engine *Engine
	clock  *clock
}

func newHarness(t *testing.T, tr Transformer, opts ...Option) *harness {
	t.Helper()
	kvs := testutil.TestKV(t)
	c := &clock{t: time.UnixMilli(1000)}
	store := notes.New(kvs, notes.WithClock(c.now))
	remote := testutil.NewFakeRemote()
	if tr == nil {
		tr = aitransform.Passthrough{}
	}
	return &harness{
		kv:     kvs,
		notes:  store,
		remote: remote,
		engine: New(store, kvs, remote, tr, opts...),
		clock:  c,
	}
}

func (h *harness) note(t *testing.T, title, body string) models.Note {
	t.Helper()
	ctx := context.Background()
	n, err := h.notes.Create(ctx, title)
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if body == "" {
		return n
	}
	n, err = h.notes.Update(ctx, n.ID, title, body)
	if err != nil {
		t.Fatalf("update note: %v", err)
	}
	return n
}

// bound seeds a document on both sides, in sync.
func (h *harness) bound(t *testing.T, doc models.RemoteDocument) models.Note {
	t.Helper()
	h.remote.Put(doc)
	n, _, err := h.notes.ApplyRemote(context.Background(), doc)
	if err != nil {
		t.Fatalf("apply remote: %v", err)
	}
	return n
}

func (h *harness) sync(t *testing.T) *Report {
	t.Helper()
	rep, err := h.engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	return rep
}

func TestFirstPushThenNoop(t *testing.T) {
	h := newHarness(t, nil)
	n := h.note(t, "T", "- buy milk")

	rep := h.sync(t)
	calls := h.remote.Calls()
	if len(calls) != 1 || calls[0].Op != "create" {
		t.Fatalf("calls = %+v, want one create", calls)
	}
	if rep.Created != 1 || len(rep.Failures) != 0 {
		t.Errorf("report = %+v", rep)
	}

	got, err := h.notes.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RemoteID != calls[0].RemoteID || got.Title != "T" {
		t.Errorf("note = %+v, want bound to %s with title T", got, calls[0].RemoteID)
	}
	if got.SyncedBody != "- buy milk" {
		t.Errorf("SyncedBody = %q", got.SyncedBody)
	}

	h.remote.ResetCalls()
	rep = h.sync(t)
	if calls := h.remote.Calls(); len(calls) != 0 {
		t.Errorf("second pass made writes: %+v", calls)
	}
	if rep.Writes() != 0 || rep.Pulled+rep.PulledNew != 0 {
		t.Errorf("second pass report = %+v", rep)
	}
	if st := h.engine.Status().Current().State; st != status.Success {
		t.Errorf("state = %s, want success", st)
	}
}

func TestBlankBodyPushesWithoutBlocks(t *testing.T) {
	h := newHarness(t, nil)
	n := h.note(t, "T", "\n \n")

	rep := h.sync(t)
	if rep.Created != 1 || len(rep.Failures) != 0 {
		t.Fatalf("report = %+v, want one create and no failures", rep)
	}
	got, err := h.notes.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Bound() {
		t.Errorf("note = %+v, want remote id recorded", got)
	}
}

func TestLocalEditPushesUpdate(t *testing.T) {
	h := newHarness(t, nil)
	n := h.bound(t, models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "old", LastEditedTime: 500})
	if _, err := h.notes.Update(context.Background(), n.ID, "T", "new"); err != nil {
		t.Fatal(err)
	}

	rep := h.sync(t)
	if rep.Updated != 1 {
		t.Fatalf("report = %+v, want one update", rep)
	}
	doc, _ := h.remote.Doc("r1")
	if doc.Body != "new" {
		t.Errorf("remote body = %q, want new", doc.Body)
	}
}

func TestRemoteEditsArePulled(t *testing.T) {
	h := newHarness(t, nil)
	n := h.bound(t, models.RemoteDocument{RemoteID: "r1", Title: "Old", Body: "old", LastEditedTime: 500})
	h.remote.Put(models.RemoteDocument{RemoteID: "r1", Title: "New", Body: "new body", LastEditedTime: 900})
	h.remote.Put(models.RemoteDocument{RemoteID: "r2", Title: "Other", Body: "other", LastEditedTime: 800})

	rep := h.sync(t)
	if rep.Pulled != 1 || rep.PulledNew != 1 || rep.Writes() != 0 {
		t.Fatalf("report = %+v", rep)
	}
	got, _ := h.notes.Get(context.Background(), n.ID)
	if got.Title != "New" || got.Body != "new body" || got.LastModified != 900 {
		t.Errorf("pulled note = %+v", got)
	}
	all, _ := h.notes.List(context.Background())
	if len(all) != 2 {
		t.Errorf("local notes = %d, want 2", len(all))
	}

	h.remote.ResetCalls()
	rep = h.sync(t)
	if rep.Writes() != 0 || rep.Pulled+rep.PulledNew != 0 {
		t.Errorf("pass after pull not a no-op: %+v", rep)
	}
}

func TestTombstoneSuppressesPush(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	n := h.bound(t, models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "b", LastEditedTime: 500})
	if err := h.engine.tombstones.add(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	for i := range 3 {
		h.clock.set(int64(10_000 * (i + 1)))
		if _, err := h.notes.Update(ctx, n.ID, "T", fmt.Sprintf("edit %d", i)); err != nil {
			t.Fatal(err)
		}
		rep := h.sync(t)
		if rep.Skipped != 1 {
			t.Errorf("pass %d skipped = %d, want 1", i, rep.Skipped)
		}
	}
	if calls := h.remote.Calls(); len(calls) != 0 {
		t.Errorf("tombstoned note was pushed: %+v", calls)
	}
}

func TestRemoteDeletionPropagates(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	n := h.bound(t, models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "b", LastEditedTime: 500})
	h.remote.Remove("r1")

	rep := h.sync(t)
	if rep.DeletedLocal != 1 || rep.Created != 0 {
		t.Fatalf("report = %+v, want one local deletion and no create", rep)
	}
	if _, err := h.notes.Get(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present: %v", err)
	}
	tomb, _ := h.engine.Tombstones(ctx)
	if len(tomb) != 1 || tomb[0] != "r1" {
		t.Errorf("tombstones = %v, want [r1]", tomb)
	}

	// A document reappearing under the same id is not resurrected.
	h.remote.Put(models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "back", LastEditedTime: 2000})
	rep = h.sync(t)
	if rep.PulledNew != 0 {
		t.Errorf("tombstoned document pulled: %+v", rep)
	}
}

func TestClearTombstoneAllowsPullAgain(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.remote.Put(models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "b", LastEditedTime: 500})
	if err := h.engine.tombstones.add(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if rep := h.sync(t); rep.PulledNew != 0 {
		t.Fatalf("tombstoned document pulled: %+v", rep)
	}

	removed, err := h.engine.ClearTombstone(ctx, "r1")
	if err != nil || !removed {
		t.Fatalf("ClearTombstone = %v, %v", removed, err)
	}
	if rep := h.sync(t); rep.PulledNew != 1 {
		t.Errorf("report = %+v, want document pulled after clear", rep)
	}
}

func TestFailureIsolation(t *testing.T) {
	tr := transformFunc(func(_ context.Context, _, next string) (string, error) {
		if strings.Contains(next, "bad") {
			return "", aitransform.ErrEmptyResponse
		}
		return next, nil
	})
	h := newHarness(t, tr)
	a := h.note(t, "A", "bad body")
	b := h.note(t, "B", "good body")

	rep := h.sync(t)
	if rep.Created != 1 || rep.Skipped != 1 || len(rep.Failures) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if f := rep.Failures[0]; f.NoteID != a.ID || f.Op != OpTransform || f.Title != "A" {
		t.Errorf("failure = %+v", f)
	}
	if st := h.engine.Status().Current().State; st != status.Success {
		t.Errorf("state = %s, want success despite note failure", st)
	}
	gotA, _ := h.notes.Get(context.Background(), a.ID)
	if gotA.Bound() || gotA.Body != "bad body" {
		t.Errorf("failed note modified: %+v", gotA)
	}
	gotB, _ := h.notes.Get(context.Background(), b.ID)
	if !gotB.Bound() {
		t.Error("unaffected note not pushed")
	}
}

func TestRemoteWriteFailureLeavesNoteUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.Fail = func(op, title string) error {
		if op == "create" && title == "A" {
			return errors.New("rate limited")
		}
		return nil
	}
	a := h.note(t, "A", "x")
	h.note(t, "B", "y")

	rep := h.sync(t)
	if rep.Created != 1 || len(rep.Failures) != 1 || rep.Failures[0].Op != OpCreate {
		t.Fatalf("report = %+v", rep)
	}
	got, _ := h.notes.Get(context.Background(), a.ID)
	if got.Bound() {
		t.Error("note bound despite failed create")
	}
}

func TestPullFailureAborts(t *testing.T) {
	h := newHarness(t, nil)
	h.note(t, "A", "x")
	h.remote.ListErr = errors.New("connection refused")

	_, err := h.engine.Sync(context.Background())
	if err == nil {
		t.Fatal("expected abort")
	}
	if calls := h.remote.Calls(); len(calls) != 0 {
		t.Errorf("writes after failed pull: %+v", calls)
	}
	snap := h.engine.Status().Current()
	if snap.State != status.Error || !strings.Contains(snap.LastError, "connection refused") {
		t.Errorf("status = %+v", snap)
	}
}

func TestFailurePolicyOriginal(t *testing.T) {
	tr := transformFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("provider down")
	})
	h := newHarness(t, tr, WithFailurePolicy(FailOriginal))
	h.note(t, "A", "keep me")
	h.note(t, "Empty", "")

	rep := h.sync(t)
	if rep.Created != 1 || rep.Skipped != 1 {
		t.Fatalf("report = %+v, want original pushed and empty skipped", rep)
	}
	calls := h.remote.Calls()
	if calls[0].Body != "keep me" {
		t.Errorf("pushed body = %q", calls[0].Body)
	}
}

func TestTransformedBodyIsRecorded(t *testing.T) {
	tr := transformFunc(func(_ context.Context, _, next string) (string, error) {
		return strings.ToUpper(next), nil
	})
	h := newHarness(t, tr)
	n := h.note(t, "A", "shout")

	h.sync(t)
	got, _ := h.notes.Get(context.Background(), n.ID)
	if got.Body != "SHOUT" || got.SyncedBody != "SHOUT" {
		t.Errorf("note = %+v, want transformed body stored", got)
	}
	h.remote.ResetCalls()
	h.sync(t)
	if calls := h.remote.Calls(); len(calls) != 0 {
		t.Errorf("second pass made writes: %+v", calls)
	}
}

func TestPanicIsNoteLevel(t *testing.T) {
	tr := transformFunc(func(_ context.Context, _, next string) (string, error) {
		if next == "boom" {
			panic("nil map")
		}
		return next, nil
	})
	h := newHarness(t, tr)
	h.note(t, "A", "boom")
	h.note(t, "B", "fine")

	rep := h.sync(t)
	if rep.Created != 1 || len(rep.Failures) != 1 || !strings.Contains(rep.Failures[0].Error, "panic") {
		t.Errorf("report = %+v", rep)
	}
}

func TestBoundedConcurrentPush(t *testing.T) {
	h := newHarness(t, nil, WithPushConcurrency(4))
	for i := range 10 {
		h.note(t, fmt.Sprintf("n%d", i), "body")
	}
	rep := h.sync(t)
	if rep.Created != 10 {
		t.Fatalf("created = %d, want 10", rep.Created)
	}
	all, _ := h.notes.List(context.Background())
	seen := map[string]bool{}
	for _, n := range all {
		if !n.Bound() || seen[n.RemoteID] {
			t.Errorf("note %s has remote id %q", n.ID, n.RemoteID)
		}
		seen[n.RemoteID] = true
	}
}

func TestDeleteNoteQueuesArchive(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	n := h.bound(t, models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "b", LastEditedTime: 500})

	if _, err := h.engine.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	pending, _ := h.engine.PendingArchives(ctx)
	if len(pending) != 1 || pending[0] != "r1" {
		t.Fatalf("pending = %v", pending)
	}

	rep := h.sync(t)
	if rep.Archived != 1 {
		t.Errorf("report = %+v, want one archive", rep)
	}
	if _, ok := h.remote.Doc("r1"); ok {
		t.Error("remote document not archived")
	}
	pending, _ = h.engine.PendingArchives(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after flush = %v", pending)
	}
	tomb, _ := h.engine.Tombstones(ctx)
	if len(tomb) != 1 {
		t.Errorf("tombstones = %v", tomb)
	}
}

func TestFailedArchiveStaysQueued(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	n := h.bound(t, models.RemoteDocument{RemoteID: "r1", Title: "T", Body: "b", LastEditedTime: 500})
	if _, err := h.engine.DeleteNote(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	h.remote.Fail = func(op, _ string) error {
		if op == "archive" {
			return errors.New("timeout")
		}
		return nil
	}

	rep := h.sync(t)
	if len(rep.Failures) != 1 || rep.Failures[0].Op != OpArchive {
		t.Fatalf("report = %+v", rep)
	}
	if rep.PulledNew != 0 {
		t.Error("tombstoned document pulled back while archive pending")
	}
	pending, _ := h.engine.PendingArchives(ctx)
	if len(pending) != 1 {
		t.Errorf("pending = %v, want still queued", pending)
	}
}

// blockingRemote holds ListAll until released.
type blockingRemote struct {
	*testutil.FakeRemote
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) ListAll(ctx context.Context) ([]models.RemoteDocument, error) {
	close(b.entered)
	<-b.release
	return b.FakeRemote.ListAll(ctx)
}

func TestSinglePassGuard(t *testing.T) {
	kvs := testutil.TestKV(t)
	store := notes.New(kvs)
	remote := &blockingRemote{
		FakeRemote: testutil.NewFakeRemote(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	e := New(store, kvs, remote, aitransform.Passthrough{})
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-remote.entered

	if _, err := e.Sync(ctx); !errors.Is(err, apperr.ErrSyncInProgress) {
		t.Errorf("concurrent Sync = %v, want ErrSyncInProgress", err)
	}
	if err := e.Start(ctx); !errors.Is(err, apperr.ErrSyncInProgress) {
		t.Errorf("concurrent Start = %v, want ErrSyncInProgress", err)
	}
	err := e.Exclusive(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, apperr.ErrSyncInProgress) {
		t.Errorf("Exclusive during pass = %v, want ErrSyncInProgress", err)
	}
	if st := e.Status().Current().State; st != status.Syncing {
		t.Errorf("state = %s, want syncing", st)
	}

	done, stop := e.Status().Subscribe()
	defer stop()
	close(remote.release)
	for snap := range done {
		if snap.State == status.Success {
			break
		}
	}
	// The guard is released right after the final status update.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := e.Exclusive(ctx, func(context.Context) error { return nil })
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine still busy: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
