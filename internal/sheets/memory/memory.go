// Package memory records activity rows in process, for tests and local runs
// without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"lifehub/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.ActivityRow
	// Err, when set, fails every Append.
	Err error
}

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row sheets.ActivityRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.ActivityRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.ActivityRow(nil), s.rows...)
}
