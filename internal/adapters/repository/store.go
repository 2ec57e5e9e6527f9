package repository

import (
	"fmt"
	"strconv"

	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/membership"
)

// Partition selects the attribute waiting queues are bucketed by.
type Partition int

// Supported partitions.
const (
	PartitionNone Partition = iota
	PartitionTower
	PartitionCard
)

// String returns the partition name.
func (p Partition) String() string {
	switch p {
	case PartitionTower:
		return "tower"
	case PartitionCard:
		return "card"
	default:
		return "none"
	}
}

// Range returns the inclusive key range of the partition.
func (p Partition) Range() (lo, hi int) {
	switch p {
	case PartitionTower:
		return competitor.MinTowerTier, competitor.MaxTowerTier
	case PartitionCard:
		return competitor.MinCardLevel, competitor.MaxCardLevel
	default:
		return 0, -1
	}
}

// Key returns the bucket key of c under this partition.
func (p Partition) Key(c *competitor.Competitor) int {
	switch p {
	case PartitionTower:
		return c.TowerTier
	case PartitionCard:
		return c.CardLevel
	default:
		return int(membership.General)
	}
}

// Store holds the waiting queues of one simulation run: a fixed slice of
// buckets indexed by partition key plus the general queue, which is the only
// queue of an unpartitioned store and the overflow queue above the tier
// cutoff otherwise. A membership index guarantees a competitor waits in at
// most one queue.
type Store struct {
	partition Partition
	lo, hi    int
	buckets   []*Queue
	general   *Queue
	members   membership.Index
	opts      []Option

	highWater int
}

// NewStore constructs an empty store for the given partition.
func NewStore(partition Partition, opts ...Option) *Store {
	lo, hi := partition.Range()
	s := &Store{
		partition: partition,
		lo:        lo,
		hi:        hi,
		general:   NewQueue(opts...),
		members:   membership.NewIndex(),
		opts:      opts,
	}
	if hi >= lo {
		s.buckets = make([]*Queue, hi-lo+1)
		for i := range s.buckets {
			s.buckets[i] = NewQueue(opts...)
		}
	}
	return s
}

// Partition returns the partition the store buckets by.
func (s *Store) Partition() Partition { return s.partition }

// InRange reports whether key names a bucket.
func (s *Store) InRange(key int) bool {
	return len(s.buckets) > 0 && key >= s.lo && key <= s.hi
}

// SlotOf returns the bucket slot c belongs to, or General for an
// unpartitioned store.
func (s *Store) SlotOf(c *competitor.Competitor) membership.Slot {
	if len(s.buckets) == 0 {
		return membership.General
	}
	return membership.Slot(s.partition.Key(c))
}

// Queue returns the queue behind slot.
func (s *Store) Queue(slot membership.Slot) (*Queue, error) {
	if slot == membership.General {
		return s.general, nil
	}
	if !s.InRange(int(slot)) {
		return nil, fmt.Errorf("%w: %d not in [%d,%d]", ErrSlotOutOfRange, slot, s.lo, s.hi)
	}
	return s.buckets[int(slot)-s.lo], nil
}

// Insert places c into the queue behind slot.
func (s *Store) Insert(c *competitor.Competitor, slot membership.Slot) error {
	q, err := s.Queue(slot)
	if err != nil {
		return err
	}
	if !s.members.Claim(c.ID, slot) {
		held, _ := s.members.Slot(c.ID)
		return fmt.Errorf("%w: id %d in slot %d", ErrAlreadyWaiting, c.ID, held)
	}
	if err := q.Insert(c); err != nil {
		s.members.Release(c.ID)
		return err
	}
	if n := s.Len(); n > s.highWater {
		s.highWater = n
	}
	return nil
}

// Nearest returns the nearest-by-rating candidate for c in slot.
func (s *Store) Nearest(slot membership.Slot, c *competitor.Competitor) (*competitor.Competitor, bool) {
	q, err := s.Queue(slot)
	if err != nil {
		return nil, false
	}
	return q.NearestTo(c)
}

// Remove takes a waiting competitor out of whichever queue holds it.
func (s *Store) Remove(c *competitor.Competitor) error {
	slot, ok := s.members.Slot(c.ID)
	if !ok {
		return fmt.Errorf("%w: id %d is not waiting", ErrNotFound, c.ID)
	}
	q, err := s.Queue(slot)
	if err != nil {
		return err
	}
	if !q.Contains(c.ID) {
		return fmt.Errorf("%w: index places id %d in slot %d, the queue does not hold it", ErrInvariant, c.ID, slot)
	}
	if _, err := q.RemoveNearest(c); err != nil {
		return err
	}
	s.members.Release(c.ID)
	return nil
}

// Waiting reports whether id is in any queue.
func (s *Store) Waiting(id int) bool {
	_, ok := s.members.Slot(id)
	return ok
}

// Holder returns the slot id is waiting in.
func (s *Store) Holder(id int) (membership.Slot, bool) {
	return s.members.Slot(id)
}

// Snapshot returns the entries of slot in ascending order. Unknown slots
// yield nil.
func (s *Store) Snapshot(slot membership.Slot) []*competitor.Competitor {
	q, err := s.Queue(slot)
	if err != nil {
		return nil
	}
	return q.Entries()
}

// Around returns up to k entries on each side of the first entry in slot
// rated at or above rating.
func (s *Store) Around(slot membership.Slot, rating, k int) []*competitor.Competitor {
	q, err := s.Queue(slot)
	if err != nil || k <= 0 {
		return nil
	}
	pos := q.LowerBound(rating)
	out := make([]*competitor.Competitor, 0, 2*k)
	for i := max(pos-k, 0); i < pos+k; i++ {
		c, ok := q.At(i)
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

// Len returns the total number of waiting competitors.
func (s *Store) Len() int {
	return int(s.members.Size())
}

// HighWater returns the largest total queue length observed.
func (s *Store) HighWater() int { return s.highWater }

// BucketLens returns the length of every non-empty queue keyed by slot name.
func (s *Store) BucketLens() map[string]int {
	out := make(map[string]int)
	if n := s.general.Len(); n > 0 {
		out["general"] = n
	}
	for i, q := range s.buckets {
		if n := q.Len(); n > 0 {
			out[strconv.Itoa(s.lo+i)] = n
		}
	}
	return out
}

// Reset empties every queue.
func (s *Store) Reset() {
	s.general = NewQueue(s.opts...)
	for i := range s.buckets {
		s.buckets[i] = NewQueue(s.opts...)
	}
	s.members.Reset()
	s.highWater = 0
}

// CheckInvariants verifies queue ordering, that every waiting competitor is
// in exactly the queue the membership index says, and that no competitor
// waits twice.
func (s *Store) CheckInvariants() error {
	seen := make(map[int]membership.Slot, s.Len())
	total := 0

	check := func(slot membership.Slot, q *Queue) error {
		if err := q.checkOrder(); err != nil {
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		for _, c := range q.Entries() {
			if prev, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: id %d waits in slots %d and %d", ErrInvariant, c.ID, prev, slot)
			}
			seen[c.ID] = slot
			held, ok := s.members.Slot(c.ID)
			if !ok || held != slot {
				return fmt.Errorf("%w: id %d found in slot %d, index says %d (%t)", ErrInvariant, c.ID, slot, held, ok)
			}
			if slot != membership.General && s.partition.Key(c) != int(slot) {
				return fmt.Errorf("%w: id %d with key %d in bucket %d", ErrInvariant, c.ID, s.partition.Key(c), slot)
			}
			total++
		}
		return nil
	}

	if err := check(membership.General, s.general); err != nil {
		return err
	}
	for i, q := range s.buckets {
		if err := check(membership.Slot(s.lo+i), q); err != nil {
			return err
		}
	}
	if total != s.Len() {
		return fmt.Errorf("%w: %d queued, index holds %d", ErrInvariant, total, s.Len())
	}
	return nil
}
