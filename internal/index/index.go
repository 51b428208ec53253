package index

// Catalog defines the catalog operations. Consumers depend on this
// interface rather than the concrete *DB type.
type Catalog interface {
	Upsert(r Row, body string) error
	Delete(path string) error
	Get(path string) (*Row, error)
	List(category string, limit, offset int) ([]Row, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
