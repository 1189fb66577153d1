package index

// Catalog is the read/write surface of the search catalog. Consumers depend
// on it rather than on *DB.
type Catalog interface {
	UpsertDocument(r Row, body string, refs []string) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Referrers(target string) ([]string, error)
	Count() (int, error)
	Close() error
}

var _ Catalog = (*DB)(nil)
