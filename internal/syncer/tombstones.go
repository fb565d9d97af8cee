package syncer

import (
	"context"
	"fmt"
	"slices"

	"github.com/starford/scraps/internal/kv"
)

const (
	TombstonesKey      = "tombstones"
	PendingArchivesKey = "pending_archives"
)

// idSet is a persisted set of remote ids stored as a sorted JSON list.
// Reads go to the store every time so separate processes agree.
type idSet struct {
	kv  kv.Store
	key string
}

func (s idSet) list(ctx context.Context) ([]string, error) {
	ids, err := kv.GetList[string](ctx, s.kv, s.key)
	if err != nil {
		return nil, fmt.Errorf("syncer: load %s: %w", s.key, err)
	}
	return ids, nil
}

func (s idSet) set(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s idSet) add(ctx context.Context, ids ...string) error {
	err := kv.UpdateList(ctx, s.kv, s.key, func(cur []string) ([]string, error) {
		for _, id := range ids {
			if id != "" && !slices.Contains(cur, id) {
				cur = append(cur, id)
			}
		}
		slices.Sort(cur)
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("syncer: save %s: %w", s.key, err)
	}
	return nil
}

func (s idSet) remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := kv.UpdateList(ctx, s.kv, s.key, func(cur []string) ([]string, error) {
		i := slices.Index(cur, id)
		if i < 0 {
			return cur, nil
		}
		removed = true
		return slices.Delete(cur, i, i+1), nil
	})
	if err != nil {
		return false, fmt.Errorf("syncer: save %s: %w", s.key, err)
	}
	return removed, nil
}
