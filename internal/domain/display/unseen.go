package display

import (
	"context"
	"slices"

	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/okian/lingoquest/pkg/observable"
)

// Unseen is the published set of achievement ids the user has been awarded
// but not yet acknowledged, in award order.
type Unseen struct {
	ids *observable.Value[[]string]
}

// NewUnseen creates an empty unseen set.
func NewUnseen() *Unseen {
	return &Unseen{ids: observable.New[[]string](nil)}
}

// Add inserts ids that are not already present.
func (u *Unseen) Add(ids ...string) {
	if len(ids) == 0 {
		return
	}
	next := u.ids.Update(func(cur []string) []string {
		out := slices.Clone(cur)
		for _, id := range ids {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
		return out
	})
	metrics.UpdateUnseenCount(len(next))
}

// MarkAsSeen removes id. Unknown ids are ignored.
func (u *Unseen) MarkAsSeen(id string) {
	if !u.Contains(id) {
		return
	}
	next := u.ids.Update(func(cur []string) []string {
		return slices.DeleteFunc(slices.Clone(cur), func(s string) bool { return s == id })
	})
	metrics.UpdateUnseenCount(len(next))
}

// MarkAllAsSeen empties the set.
func (u *Unseen) MarkAllAsSeen() {
	u.ids.Store(nil)
	metrics.UpdateUnseenCount(0)
}

// Snapshot returns a copy of the current ids.
func (u *Unseen) Snapshot() []string {
	return slices.Clone(u.ids.Load())
}

// Count returns the number of unseen ids.
func (u *Unseen) Count() int {
	return len(u.ids.Load())
}

// Contains reports whether id is unseen.
func (u *Unseen) Contains(id string) bool {
	return slices.Contains(u.ids.Load(), id)
}

// Subscribe streams the unseen ids after every change.
func (u *Unseen) Subscribe(ctx context.Context) <-chan []string {
	return u.ids.Subscribe(ctx)
}
