package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/internal/domain/directory"
	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

type Directory interface {
	ListDoctors(ctx context.Context, f directory.DoctorFilter) ([]*models.Doctor, error)
	GetHospital(ctx context.Context, id string) (*models.Hospital, error)
}

type Catalog interface {
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]*models.Product, error)
}

type Service struct {
	dir     Directory
	catalog Catalog
	kv      kvstore.Store
	initial []string
	logger  zerolog.Logger
	mu      sync.Mutex
}

// NewService returns a search service. initial seeds the recent-search list
// of workspaces that have none stored.
func NewService(dir Directory, cat Catalog, kv kvstore.Store, initial []string, logger zerolog.Logger) *Service {
	return &Service{
		dir:     dir,
		catalog: cat,
		kv:      kv,
		initial: initial,
		logger:  logger.With().Str("component", "search").Logger(),
	}
}

func matches(query string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// Search matches surgeons on name, specialty or any hospital name and
// products on name, category, sku or description. An empty query returns no
// results and the recent-search list; any other query is recorded.
func (s *Service) Search(ctx context.Context, query string) (*Results, error) {
	query = strings.TrimSpace(query)
	res := &Results{Query: query, Surgeons: []SurgeonResult{}, Products: []*models.Product{}}
	if query == "" {
		res.Recent = s.Recent(ctx)
		return res, nil
	}
	q := strings.ToLower(query)

	doctors, err := s.dir.ListDoctors(ctx, directory.DoctorFilter{})
	if err != nil {
		return nil, err
	}
	hospitalNames := map[string]string{}
	for _, d := range doctors {
		names := make([]string, 0, len(d.HospitalIDs))
		for _, id := range d.HospitalIDs {
			name, ok := hospitalNames[id]
			if !ok {
				h, err := s.dir.GetHospital(ctx, id)
				switch {
				case errors.Is(err, directory.ErrNotFound):
				case err != nil:
					return nil, err
				default:
					name = h.Name
				}
				hospitalNames[id] = name
			}
			if name != "" {
				names = append(names, name)
			}
		}
		if matches(q, d.Name, d.Specialty) || matches(q, names...) {
			res.Surgeons = append(res.Surgeons, SurgeonResult{Doctor: d, HospitalNames: names})
		}
	}

	products, err := s.catalog.ListProducts(ctx, catalog.ProductFilter{})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if matches(q, p.Name, p.Category, p.SKU, p.Description) {
			res.Products = append(res.Products, p)
		}
	}

	if _, err := s.Record(ctx, query); err != nil {
		s.logger.Warn().Err(err).Msg("recording recent search failed")
	}
	return res, nil
}

func (s *Service) load(ctx context.Context) []string {
	list := kvstore.LoadJSON[[]string](ctx, s.kv, s.logger, KeyRecentSearches, nil)
	if list == nil {
		return append([]string{}, s.initial...)
	}
	return list
}

// Recent returns the workspace's recent queries, newest first.
func (s *Service) Recent(ctx context.Context) []string {
	return s.load(ctx)
}

// Record moves query to the front of the recent list, dropping any entry
// equal to it ignoring case, and keeps at most MaxRecentSearches.
func (s *Service) Record(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.Recent(ctx), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := []string{query}
	for _, q := range s.load(ctx) {
		if len(next) == MaxRecentSearches {
			break
		}
		if !strings.EqualFold(q, query) {
			next = append(next, q)
		}
	}
	if err := kvstore.SaveJSON(ctx, s.kv, KeyRecentSearches, next); err != nil {
		return nil, fmt.Errorf("save recent searches: %w", err)
	}
	return next, nil
}

// ClearRecent empties the list. A cleared list is not re-seeded.
func (s *Service) ClearRecent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := kvstore.SaveJSON(ctx, s.kv, KeyRecentSearches, []string{}); err != nil {
		return fmt.Errorf("clear recent searches: %w", err)
	}
	return nil
}
