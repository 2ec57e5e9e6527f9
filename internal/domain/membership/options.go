package membership

const defaultCapacity = 1024

type options struct {
	capacity int
}

// Option applies a configuration option to the index.
type Option func(*options)

// WithCapacity pre-sizes the index.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
