package syncer

import "github.com/starford/scraps/internal/models"

// Pair joins a local note with the remote document it is bound to.
type Pair struct {
	Note   models.Note
	Remote models.RemoteDocument
}

// Plan is the outcome of the merge decision for one pass.
type Plan struct {
	// Vanished notes are bound to documents missing from the pull.
	Vanished []models.Note
	// Creates have never been pushed.
	Creates []models.Note
	// Updates are newer locally than remotely.
	Updates []Pair
	// Pulls are newer remotely than locally.
	Pulls []Pair
	// PullNew documents are not claimed by any local note.
	PullNew []models.RemoteDocument
	// Frozen notes are bound to a tombstoned id and left alone.
	Frozen []models.Note
	// InSync notes have equal timestamps on both sides.
	InSync int
}

// Decide computes the plan for a pass from a snapshot of both sides and the
// tombstone set. It performs no I/O.
func Decide(local []models.Note, remote []models.RemoteDocument, tombstones map[string]struct{}) Plan {
	byID := make(map[string]models.RemoteDocument, len(remote))
	for _, r := range remote {
		byID[r.RemoteID] = r
	}

	var p Plan
	claimed := make(map[string]bool, len(local))
	for _, l := range local {
		if !l.Bound() {
			p.Creates = append(p.Creates, l)
			continue
		}
		claimed[l.RemoteID] = true
		r, ok := byID[l.RemoteID]
		if !ok {
			p.Vanished = append(p.Vanished, l)
			continue
		}
		if _, dead := tombstones[l.RemoteID]; dead {
			p.Frozen = append(p.Frozen, l)
			continue
		}
		switch {
		case l.LastModified > r.LastEditedTime:
			p.Updates = append(p.Updates, Pair{Note: l, Remote: r})
		case l.LastModified < r.LastEditedTime:
			p.Pulls = append(p.Pulls, Pair{Note: l, Remote: r})
		default:
			p.InSync++
		}
	}

	for _, r := range remote {
		if claimed[r.RemoteID] {
			continue
		}
		if _, dead := tombstones[r.RemoteID]; dead {
			continue
		}
		p.PullNew = append(p.PullNew, r)
	}
	return p
}

// Writes counts the remote write calls the plan requires.
func (p Plan) Writes() int { return len(p.Creates) + len(p.Updates) }
