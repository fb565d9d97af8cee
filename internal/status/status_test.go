package status

import (
	"errors"
	"testing"

	"github.com/starford/scraps/internal/models"
)

func TestLifecycle(t *testing.T) {
	r := New()
	if got := r.Current().State; got != Idle {
		t.Fatalf("initial state = %s, want idle", got)
	}

	r.Begin()
	if got := r.Current().State; got != Syncing {
		t.Fatalf("state = %s, want syncing", got)
	}

	rep := &models.SyncReport{Created: 1, Failures: []models.SyncFailure{{Op: "transform", Error: "x"}}}
	r.Finish(rep, nil)
	snap := r.Current()
	if snap.State != Success || snap.LastReport != rep {
		t.Fatalf("snapshot = %+v, want success with report", snap)
	}

	r.Begin()
	r.Finish(nil, errors.New("pull failed"))
	snap = r.Current()
	if snap.State != Error || snap.LastError != "pull failed" {
		t.Fatalf("snapshot = %+v, want error", snap)
	}
	if snap.LastReport != rep {
		t.Error("previous report dropped on abort")
	}
}

func TestSubscribe(t *testing.T) {
	r := New()
	ch, stop := r.Subscribe()
	r.Begin()
	if got := <-ch; got.State != Syncing {
		t.Errorf("received %s, want syncing", got.State)
	}
	stop()
	stop()
	r.Finish(&models.SyncReport{}, nil)
	if _, ok := <-ch; ok {
		t.Error("channel still open after stop")
	}
}
