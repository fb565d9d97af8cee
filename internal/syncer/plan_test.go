package syncer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/scraps/internal/models"
)

func TestDecideLastModifiedWins(t *testing.T) {
	tests := []struct {
		name   string
		local  int64
		remote int64
		want   string
	}{
		{"local newer pushes", 100, 50, "update"},
		{"remote newer pulls", 50, 100, "pull"},
		{"equal is a no-op", 100, 100, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := []models.Note{{ID: "n1", RemoteID: "r1", LastModified: tt.local}}
			remote := []models.RemoteDocument{{RemoteID: "r1", LastEditedTime: tt.remote}}
			p := Decide(local, remote, nil)

			got := "none"
			switch {
			case len(p.Updates) == 1:
				got = "update"
			case len(p.Pulls) == 1:
				got = "pull"
			}
			if got != tt.want {
				t.Errorf("decision = %s, want %s (plan %+v)", got, tt.want, p)
			}
			if len(p.Creates)+len(p.PullNew)+len(p.Vanished) != 0 {
				t.Errorf("unexpected extra actions: %+v", p)
			}
		})
	}
}

func TestDecideClassifiesEverything(t *testing.T) {
	local := []models.Note{
		{ID: "fresh", LastModified: 10},
		{ID: "gone", RemoteID: "r-gone", LastModified: 10},
		{ID: "frozen", RemoteID: "r-dead", LastModified: 1 << 40},
		{ID: "same", RemoteID: "r-same", LastModified: 7},
	}
	remote := []models.RemoteDocument{
		{RemoteID: "r-dead", LastEditedTime: 1},
		{RemoteID: "r-same", LastEditedTime: 7},
		{RemoteID: "r-new", LastEditedTime: 3},
		{RemoteID: "r-dead-unclaimed", LastEditedTime: 3},
	}
	tomb := map[string]struct{}{"r-dead": {}, "r-dead-unclaimed": {}}

	p := Decide(local, remote, tomb)

	ids := func(ns []models.Note) []string {
		var out []string
		for _, n := range ns {
			out = append(out, n.ID)
		}
		return out
	}
	if diff := cmp.Diff([]string{"fresh"}, ids(p.Creates)); diff != "" {
		t.Errorf("creates (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"gone"}, ids(p.Vanished)); diff != "" {
		t.Errorf("vanished (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"frozen"}, ids(p.Frozen)); diff != "" {
		t.Errorf("frozen (-want +got):\n%s", diff)
	}
	if len(p.PullNew) != 1 || p.PullNew[0].RemoteID != "r-new" {
		t.Errorf("pull new = %+v, want only r-new", p.PullNew)
	}
	if p.InSync != 1 || len(p.Updates) != 0 || len(p.Pulls) != 0 {
		t.Errorf("plan = %+v", p)
	}
	if p.Writes() != 1 {
		t.Errorf("Writes = %d, want 1", p.Writes())
	}
}
