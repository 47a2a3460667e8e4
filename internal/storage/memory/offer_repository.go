package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// offerRepositoryInMemory — простая in-memory реализация OfferRepository.
// Мьютекс делает RecordSale атомарным check-and-increment.
type offerRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.DailyOffer
}

// NewOfferRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOfferRepository() domain.OfferRepository {
	return &offerRepositoryInMemory{
		items: make(map[string]domain.DailyOffer),
	}
}

// Create сохраняет новое предложение, если ID ещё не занят.
func (r *offerRepositoryInMemory) Create(offer domain.DailyOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[offer.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.items[offer.ID] = cloneOffer(offer)
	return nil
}

// Get возвращает предложение или ErrOfferNotFound, если его нет.
func (r *offerRepositoryInMemory) Get(id string) (domain.DailyOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offer, ok := r.items[id]
	if !ok {
		return domain.DailyOffer{}, domain.ErrOfferNotFound
	}
	return cloneOffer(offer), nil
}

// List возвращает все предложения, свежие первыми.
func (r *offerRepositoryInMemory) List() ([]domain.DailyOffer, error) {
	return r.collect(func(domain.DailyOffer) bool { return true }), nil
}

// ListActive возвращает активные предложения, свежие первыми.
func (r *offerRepositoryInMemory) ListActive() ([]domain.DailyOffer, error) {
	return r.collect(func(o domain.DailyOffer) bool { return o.IsActive }), nil
}

// ListCurrent возвращает активные предложения, чьё окно дат накрывает указанный день.
func (r *offerRepositoryInMemory) ListCurrent(day time.Time) ([]domain.DailyOffer, error) {
	d := domain.DateOnly(day)
	return r.collect(func(o domain.DailyOffer) bool {
		return o.IsActive &&
			!d.Before(domain.DateOnly(o.StartDate)) &&
			!d.After(domain.DateOnly(o.EndDate))
	}), nil
}

// ListByPromoted возвращает активные предложения для конкретной книги или набора.
func (r *offerRepositoryInMemory) ListByPromoted(item domain.PromotedItem) ([]domain.DailyOffer, error) {
	return r.collect(func(o domain.DailyOffer) bool {
		return o.IsActive && o.Promoted == item
	}), nil
}

// Save перезаписывает предложение, проверяя версию (optimistic locking).
func (r *offerRepositoryInMemory) Save(offer domain.DailyOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[offer.ID]
	if !ok {
		return domain.ErrOfferNotFound
	}
	if current.Version != offer.Version {
		return domain.ErrOrderVersionConflict
	}
	offer.Version++
	r.items[offer.ID] = cloneOffer(offer)
	return nil
}

// RecordSale увеличивает продажи одним шагом под мьютексом;
// проверка лимита и инкремент неразделимы, oversell невозможен.
func (r *offerRepositoryInMemory) RecordSale(id string, qty int32) (domain.DailyOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.items[id]
	if !ok {
		return domain.DailyOffer{}, domain.ErrOfferNotFound
	}
	if offer.LimitQuantity != nil && offer.SoldQuantity+qty > *offer.LimitQuantity {
		return domain.DailyOffer{}, domain.ErrQuotaExceeded
	}
	offer.SoldQuantity += qty
	offer.UpdatedAt = time.Now().UTC()
	offer.Version++
	r.items[id] = offer
	return cloneOffer(offer), nil
}

func (r *offerRepositoryInMemory) collect(keep func(domain.DailyOffer) bool) []domain.DailyOffer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.DailyOffer, 0)
	for _, offer := range r.items {
		if keep(offer) {
			result = append(result, cloneOffer(offer))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result
}

func cloneOffer(offer domain.DailyOffer) domain.DailyOffer {
	clone := offer
	if offer.DiscountPercentage != nil {
		v := *offer.DiscountPercentage
		clone.DiscountPercentage = &v
	}
	if offer.LimitQuantity != nil {
		v := *offer.LimitQuantity
		clone.LimitQuantity = &v
	}
	return clone
}

var _ domain.OfferRepository = (*offerRepositoryInMemory)(nil)
