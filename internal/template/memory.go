package template

import "github.com/cwbudde/snid-go/internal/snidtypes"

// NewMemoryStore builds a Store directly from already-loaded templates,
// bypassing HDF5 entirely. Used by pipeline tests and by callers that
// already hold Templates in memory (e.g. a future in-process template
// generator); production use goes through Open.
func NewMemoryStore(templates []*snidtypes.Template) *Store {
	return &Store{templates: append([]*snidtypes.Template(nil), templates...)}
}
