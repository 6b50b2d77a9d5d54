package sync

import "github.com/nhle/claims-inbox/internal/model"

// Baseline is the id set of the last installed snapshot.
type Baseline map[int64]struct{}

// NewBaseline builds a baseline from a snapshot.
func NewBaseline(snapshot []model.Notification) Baseline {
	b := make(Baseline, len(snapshot))
	for _, n := range snapshot {
		b[n.ID] = struct{}{}
	}
	return b
}

// Has reports whether id was part of the baseline snapshot.
func (b Baseline) Has(id int64) bool {
	_, ok := b[id]
	return ok
}

// Reconcile returns the records of next that are unread and whose id is
// not in prev, in snapshot order. Ids already in prev never come back,
// whatever else changed about them.
func Reconcile(prev Baseline, next []model.Notification) []model.Notification {
	var fresh []model.Notification
	seen := make(map[int64]struct{}, len(next))
	for _, n := range next {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		if n.Read || prev.Has(n.ID) {
			continue
		}
		fresh = append(fresh, n)
	}
	return fresh
}

// Dedupe returns snapshot with later repeats of an id dropped.
func Dedupe(snapshot []model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(snapshot))
	seen := make(map[int64]struct{}, len(snapshot))
	for _, n := range snapshot {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
