package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/optimistic"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// provisionalIDPrefix marks client-synthesized review identities so a
// refetch obviously replaces them.
const provisionalIDPrefix = "pending-"

// Service is the catalog read side: listings pass straight through to
// the backend, but each medicine detail (reviews and aggregate rating
// included) is cached per medicine so the review flow can update it
// optimistically.
type Service struct {
	api *backend.MedicineAPI

	mu      sync.Mutex
	details map[string]*optimistic.Cache[backend.MedicineDetail]
}

func NewService(api *backend.MedicineAPI) *Service {
	return &Service{
		api:     api,
		details: make(map[string]*optimistic.Cache[backend.MedicineDetail]),
	}
}

func cloneDetail(d backend.MedicineDetail) backend.MedicineDetail {
	out := d
	out.Reviews = append([]backend.Review(nil), d.Reviews...)
	return out
}

func (s *Service) cacheFor(medicineID string) *optimistic.Cache[backend.MedicineDetail] {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.details[medicineID]
	if !ok {
		c = optimistic.NewCache(cloneDetail)
		s.details[medicineID] = c
	}
	return c
}

// List never caches: search and category filters make listings too
// varied to be worth it, and staleness there is harmless.
func (s *Service) List(ctx context.Context, q backend.ListQuery) ([]backend.Medicine, error) {
	return s.api.List(ctx, q)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.api.Categories(ctx)
}

// Detail returns the cached medicine detail, fetching it on a miss.
func (s *Service) Detail(ctx context.Context, medicineID string) (backend.MedicineDetail, error) {
	cache := s.cacheFor(medicineID)
	if d, ok := cache.Get(); ok {
		return d, nil
	}
	return s.refetch(ctx, medicineID, cache)
}

// Refresh forces the next Detail to come from the backend.
func (s *Service) Refresh(medicineID string) {
	s.cacheFor(medicineID).Invalidate()
}

func (s *Service) refetch(ctx context.Context, medicineID string, cache *optimistic.Cache[backend.MedicineDetail]) (backend.MedicineDetail, error) {
	d, err := s.api.Get(ctx, medicineID)
	if err != nil {
		return backend.MedicineDetail{}, err
	}
	cache.Set(*d)
	return cloneDetail(*d), nil
}

// SubmitReview posts a review optimistically: the cached detail shows
// the provisional review and the recomputed average immediately, and
// is restored verbatim if the server says no.
func (s *Service) SubmitReview(ctx context.Context, medicineID string, rating int, comment string, reviewer backend.User) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	cache := s.cacheFor(medicineID)

	return optimistic.Update[backend.MedicineDetail]{
		Cache: cache,
		Synthesize: func(d backend.MedicineDetail) backend.MedicineDetail {
			provisional := backend.Review{
				ID:         provisionalIDPrefix + uuid.NewString(),
				MedicineID: medicineID,
				UserID:     reviewer.ID,
				UserName:   reviewer.Name,
				Rating:     rating,
				Comment:    comment,
				CreatedAt:  time.Now(),
				Pending:    true,
			}
			d.Reviews = append(d.Reviews, provisional)
			d.AverageRating = (d.AverageRating*float64(d.ReviewCount) + float64(rating)) / float64(d.ReviewCount+1)
			d.ReviewCount++
			return d
		},
		Mutate: func(ctx context.Context) error {
			_, err := s.api.SubmitReview(ctx, medicineID, rating, comment)
			return err
		},
		Refetch: func(ctx context.Context) (backend.MedicineDetail, error) {
			d, err := s.api.Get(ctx, medicineID)
			if err != nil {
				return backend.MedicineDetail{}, err
			}
			return *d, nil
		},
	}.Run(ctx)
}
