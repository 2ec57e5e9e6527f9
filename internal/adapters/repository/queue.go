// Package repository holds the waiting queues of a simulation run.
package repository

import (
	"fmt"
	"sync"

	"github.com/okian/laddersim/internal/domain/competitor"
)

// Treap-based, in-memory ordered queue.
//
// Ordering: rating ASC, then competitor ID ASC (deterministic).
// In-order traversal yields the waiting competitors from lowest to highest
// rating. Subtree sizes give O(log n) rank lookups, and byID gives O(1)
// membership checks.

// node is a treap node. rating is the ordering key captured at insert.
type node struct {
	id     int
	rating int
	c      *competitor.Competitor
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) sorts before (bRating, bID).
func less(aRating, aID, bRating, bID int) bool {
	if aRating != bRating {
		return aRating < bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// priorityFor derives a heap priority from the id (splitmix64), so the tree
// shape is deterministic for a given seed and insertion order.
func priorityFor(id int, seed uint64) uint64 {
	z := uint64(id) + seed + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(n, nd *node) *node {
	if n == nil {
		return nd
	}
	if less(nd.rating, nd.id, n.rating, n.id) {
		n.left = insert(n.left, nd)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nd)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, rating, id int) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, rating, id)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, rating, id)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, rating, id)
	} else {
		n.right = deleteNode(n.right, rating, id)
	}
	fix(n)
	return n
}

// lowerBound returns the index of the first entry for which before reports
// false. before must be monotone over the in-order sequence.
func lowerBound(n *node, before func(*node) bool) int {
	pos := 0
	for n != nil {
		if before(n) {
			pos += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return pos
}

// kth returns the entry at in-order index i.
func kth(n *node, i int) *node {
	for n != nil {
		ls := nsize(n.left)
		switch {
		case i < ls:
			n = n.left
		case i == ls:
			return n
		default:
			i -= ls + 1
			n = n.right
		}
	}
	return nil
}

func collectAll(n *node, out *[]*competitor.Competitor) {
	if n == nil {
		return
	}
	collectAll(n.left, out)
	*out = append(*out, n.c)
	collectAll(n.right, out)
}

// Queue is an ordered collection of waiting competitors.
type Queue struct {
	mu           sync.RWMutex
	root         *node
	byID         map[int]*node
	prioritySeed uint64
}

// NewQueue constructs an empty queue.
func NewQueue(opts ...Option) *Queue {
	cfg := options{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Queue{
		byID:         make(map[int]*node, cfg.capacity),
		prioritySeed: cfg.prioritySeed,
	}
}

// Insert adds c keyed by its current rating. A competitor already in the
// queue is rejected with ErrDuplicate.
func (q *Queue) Insert(c *competitor.Competitor) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[c.ID]; ok {
		return fmt.Errorf("%w: id %d", ErrDuplicate, c.ID)
	}
	nd := &node{id: c.ID, rating: c.Rating, c: c, prio: priorityFor(c.ID, q.prioritySeed), size: 1}
	q.byID[c.ID] = nd
	q.root = insert(q.root, nd)
	return nil
}

// LowerBound returns the index of the first entry whose rating is >= rating.
func (q *Queue) LowerBound(rating int) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return lowerBound(q.root, func(n *node) bool { return n.rating < rating })
}

// NearestTo returns the candidate opponent for c: the first entry whose
// rating is >= c.Rating, or the highest entry when c outranks everyone.
// An empty queue yields false.
func (q *Queue) NearestTo(c *competitor.Competitor) (*competitor.Competitor, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := nsize(q.root)
	if n == 0 {
		return nil, false
	}
	pos := lowerBound(q.root, func(nd *node) bool { return nd.rating < c.Rating })
	if pos >= n {
		pos = n - 1
	}
	return kth(q.root, pos).c, true
}

// RemoveNearest locates the insertion point of c and removes c if it sits
// at or next to that point. Otherwise it reports ErrNotFound.
func (q *Queue) RemoveNearest(c *competitor.Competitor) (*competitor.Competitor, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos := lowerBound(q.root, func(nd *node) bool { return less(nd.rating, nd.id, c.Rating, c.ID) })
	for _, i := range [...]int{pos, pos - 1, pos + 1} {
		if i < 0 {
			continue
		}
		nd := kth(q.root, i)
		if nd == nil || nd.id != c.ID {
			continue
		}
		q.root = deleteNode(q.root, nd.rating, nd.id)
		delete(q.byID, nd.id)
		return nd.c, nil
	}
	return nil, fmt.Errorf("%w: id %d rating %d", ErrNotFound, c.ID, c.Rating)
}

// Remove deletes the entry with the given id using its stored key.
func (q *Queue) Remove(id int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	nd, ok := q.byID[id]
	if !ok {
		return false
	}
	q.root = deleteNode(q.root, nd.rating, nd.id)
	delete(q.byID, id)
	return true
}

// Contains reports whether id is waiting in this queue.
func (q *Queue) Contains(id int) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.byID[id]
	return ok
}

// Len returns the number of waiting competitors.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return nsize(q.root)
}

// At returns the entry at in-order index i.
func (q *Queue) At(i int) (*competitor.Competitor, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	nd := kth(q.root, i)
	if nd == nil {
		return nil, false
	}
	return nd.c, true
}

// Entries returns the waiting competitors in ascending order.
func (q *Queue) Entries() []*competitor.Competitor {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*competitor.Competitor, 0, nsize(q.root))
	collectAll(q.root, &out)
	return out
}

// checkOrder verifies the in-order sequence, subtree sizes and the id index.
func (q *Queue) checkOrder() error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if nsize(q.root) != len(q.byID) {
		return fmt.Errorf("%w: tree holds %d entries, index holds %d", ErrInvariant, nsize(q.root), len(q.byID))
	}
	var prev *node
	var err error
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil || err != nil {
			return
		}
		walk(n.left)
		if n.size != 1+nsize(n.left)+nsize(n.right) {
			err = fmt.Errorf("%w: stale subtree size at id %d", ErrInvariant, n.id)
			return
		}
		if prev != nil && !less(prev.rating, prev.id, n.rating, n.id) {
			err = fmt.Errorf("%w: id %d (%d) sorted after id %d (%d)", ErrInvariant, n.id, n.rating, prev.id, prev.rating)
			return
		}
		if q.byID[n.id] != n {
			err = fmt.Errorf("%w: id %d missing from index", ErrInvariant, n.id)
			return
		}
		prev = n
		walk(n.right)
	}
	walk(q.root)
	return err
}
