package store

import (
	"time"

	"github.com/amishk599/autosignin/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Nothing is kept, so
// LatestReport always reports an empty history.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) SaveReport(*model.Report) error       { return nil }
func (s *NopStore) LatestReport() (*model.Report, error) { return nil, ErrNoReports }
func (s *NopStore) Reports(int) ([]*model.Report, error) { return nil, nil }
func (s *NopStore) Cleanup(time.Duration) error          { return nil }
func (s *NopStore) Close() error                         { return nil }
