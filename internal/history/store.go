package history

import "github.com/starford/raido/internal/models"

// Store defines the history operations the engine consumes. Consumers should
// depend on this interface rather than the concrete *DB type to facilitate
// testing with mocks.
type Store interface {
	Insert(rec models.HistoryRecord) error
	ReadAll() ([]models.HistoryRecord, error)
	Get(id string) (*models.HistoryRecord, error)
	ListPage(page, pageSize int, modelID, search string) ([]models.HistoryRecord, int, error)
	WriteBatch(updates map[string]string) error
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
