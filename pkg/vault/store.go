package vault

// Store persists the full set of records. Save replaces everything that was
// stored before; there is no append or patch path.
type Store interface {
	// Load returns all records in stored order. A store that has never been
	// saved returns an empty slice.
	Load() ([]Record, error)

	// Save replaces the stored records with records, in order.
	Save(records []Record) error

	// Close releases resources held by the store.
	Close() error
}

// ParseMode controls how a malformed persisted line is handled.
type ParseMode string

const (
	// ParseStrict aborts the whole load on the first malformed or blank line.
	ParseStrict ParseMode = "strict"

	// ParseLenient skips malformed lines and logs them. Blank lines are
	// skipped without a log entry.
	ParseLenient ParseMode = "lenient"
)

// Valid reports whether m is a known mode.
func (m ParseMode) Valid() bool {
	return m == ParseStrict || m == ParseLenient
}
