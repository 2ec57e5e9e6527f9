package repository

const defaultQueueCapacity = 64

type options struct {
	capacity     int
	prioritySeed uint64
}

// Option applies a configuration option to a Queue or Store.
type Option func(*options)

// WithCapacity pre-sizes the id index of each queue.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithPrioritySeed sets the seed mixed into treap priorities.
func WithPrioritySeed(seed uint64) Option {
	return func(o *options) {
		o.prioritySeed = seed
	}
}
