package dedupe

// Option applies a configuration option to the LRU deduper.
type Option func(*lruDeduper)

// WithMaxSize sets the number of fingerprints remembered. Values <= 0 keep
// the default.
func WithMaxSize(maxSize int) Option {
	return func(d *lruDeduper) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}
