package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/membership"
)

// Sentinel kinds for engine errors.
var (
	ErrNonPositiveBudget = errors.New("match budget must be positive")
	ErrInvalidPopulation = errors.New("invalid population")
	ErrStalled           = errors.New("simulation stalled without resolving matches")
	ErrRatingBelowFloor  = errors.New("rating below floor after match")
	ErrCardCapsOrder     = errors.New("card caps must be ascending")
	ErrMissingComponent  = errors.New("engine requires a model, a resolver and a queue factory")
)

// InvariantError aborts a run when queue or competitor state is corrupt. It
// carries the state needed to diagnose the failure. Queue is nil when no
// single queue is involved.
type InvariantError struct {
	Op         string
	Tick       int64
	Competitor *competitor.Competitor
	Opponent   *competitor.Competitor
	Waiting    int
	Buckets    map[string]int
	Queue      *QueueSnapshot
	Err        error
}

// QueueSnapshot is a copy of one waiting queue taken when a run aborts.
// Nearby holds the entries around Rating.
type QueueSnapshot struct {
	Slot    membership.Slot
	Entries []*competitor.Competitor
	Rating  int
	Nearby  []*competitor.Competitor
}

func slotName(slot membership.Slot) string {
	if slot == membership.General {
		return "general"
	}
	return fmt.Sprint(int(slot))
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invariant violated during %s at tick %d: %v", e.Op, e.Tick, e.Err)
	if e.Competitor != nil {
		fmt.Fprintf(&b, "; arrival %s", e.Competitor)
	}
	if e.Opponent != nil {
		fmt.Fprintf(&b, "; opponent %s", e.Opponent)
	}
	fmt.Fprintf(&b, "; waiting=%d", e.Waiting)
	if len(e.Buckets) > 0 {
		keys := make([]string, 0, len(e.Buckets))
		for k := range e.Buckets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" buckets=[")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s:%d", k, e.Buckets[k])
		}
		b.WriteByte(']')
	}
	if q := e.Queue; q != nil {
		fmt.Fprintf(&b, "; queue %s holds %d", slotName(q.Slot), len(q.Entries))
		if len(q.Nearby) > 0 {
			fmt.Fprintf(&b, ", near %d:", q.Rating)
			for _, c := range q.Nearby {
				fmt.Fprintf(&b, " %d@%d", c.ID, c.Rating)
			}
		}
	}
	return b.String()
}

func (e *InvariantError) Unwrap() error { return e.Err }
