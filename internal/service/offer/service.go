package offer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// CreateInput описывает новое ежедневное предложение.
type CreateInput struct {
	Title              string
	Description        string
	OriginalPriceMinor int64
	OfferPriceMinor    int64
	ImageURL           string
	StartDate          time.Time
	EndDate            time.Time
	Promoted           domain.PromotedItem
	LimitQuantity      *int32
}

// UpdateInput описывает изменяемые поля предложения. Nil-поле не трогает
// текущее значение.
type UpdateInput struct {
	Title              *string
	Description        *string
	OriginalPriceMinor *int64
	OfferPriceMinor    *int64
	ImageURL           *string
	StartDate          *time.Time
	EndDate            *time.Time
	Promoted           *domain.PromotedItem
	LimitQuantity      *int32
	IsActive           *bool
}

// Service управляет ежедневными предложениями: окно действия, лимит продаж,
// производный процент скидки.
type Service struct {
	offers  domain.OfferRepository
	outbox  domain.OutboxRepository
	metrics *metrics.OrderMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewService создаёт сервис предложений с метриками в default registry.
func NewService(offers domain.OfferRepository, outbox domain.OutboxRepository, logger *log.Entry) *Service {
	s := newService(offers, outbox, logger)
	s.metrics = metrics.NewOrderMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(offers domain.OfferRepository, outbox domain.OutboxRepository, logger *log.Entry) *Service {
	return newService(offers, outbox, logger)
}

func newService(offers domain.OfferRepository, outbox domain.OutboxRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "offer-service")
	}
	return &Service{
		offers: offers,
		outbox: outbox,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create регистрирует новое предложение. Процент скидки вычисляется из цен,
// предложение создаётся активным с нулевыми продажами.
func (s *Service) Create(input CreateInput) (domain.DailyOffer, error) {
	now := s.now()
	offer := domain.DailyOffer{
		ID:                 uuid.NewString(),
		Title:              input.Title,
		Description:        input.Description,
		OriginalPriceMinor: input.OriginalPriceMinor,
		OfferPriceMinor:    input.OfferPriceMinor,
		ImageURL:           input.ImageURL,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		IsActive:           true,
		Promoted:           input.Promoted,
		LimitQuantity:      input.LimitQuantity,
		SoldQuantity:       0,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	offer.RecalculateDiscount()

	if errs := offer.Validate(); len(errs) > 0 {
		return domain.DailyOffer{}, errs[0]
	}
	if err := s.offers.Create(offer); err != nil {
		return domain.DailyOffer{}, err
	}

	s.logger.WithFields(log.Fields{
		"offer_id": offer.ID,
		"title":    offer.Title,
	}).Info("daily offer created")
	return offer, nil
}

// Update изменяет предложение. При смене цен производный процент скидки
// пересчитывается.
func (s *Service) Update(id string, input UpdateInput) (domain.DailyOffer, error) {
	offer, err := s.offers.Get(id)
	if err != nil {
		return domain.DailyOffer{}, err
	}

	if input.Title != nil {
		offer.Title = *input.Title
	}
	if input.Description != nil {
		offer.Description = *input.Description
	}
	if input.OriginalPriceMinor != nil {
		offer.OriginalPriceMinor = *input.OriginalPriceMinor
	}
	if input.OfferPriceMinor != nil {
		offer.OfferPriceMinor = *input.OfferPriceMinor
	}
	if input.ImageURL != nil {
		offer.ImageURL = *input.ImageURL
	}
	if input.StartDate != nil {
		offer.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		offer.EndDate = *input.EndDate
	}
	if input.Promoted != nil {
		offer.Promoted = *input.Promoted
	}
	if input.LimitQuantity != nil {
		offer.LimitQuantity = input.LimitQuantity
	}
	if input.IsActive != nil {
		offer.IsActive = *input.IsActive
	}

	offer.RecalculateDiscount()
	offer.UpdatedAt = s.now()

	if errs := offer.Validate(); len(errs) > 0 {
		return domain.DailyOffer{}, errs[0]
	}
	if err := s.offers.Save(offer); err != nil {
		return domain.DailyOffer{}, err
	}
	offer.Version++
	return offer, nil
}

// Get возвращает предложение по идентификатору.
func (s *Service) Get(id string) (domain.DailyOffer, error) {
	return s.offers.Get(id)
}

// List возвращает все предложения, свежие первыми.
func (s *Service) List() ([]domain.DailyOffer, error) {
	return s.offers.List()
}

// ListActive возвращает активные предложения.
func (s *Service) ListActive() ([]domain.DailyOffer, error) {
	return s.offers.ListActive()
}

// ListCurrent возвращает предложения, действующие сегодня.
func (s *Service) ListCurrent() ([]domain.DailyOffer, error) {
	return s.offers.ListCurrent(s.now())
}

// ListByPromoted возвращает активные предложения для книги или набора.
func (s *Service) ListByPromoted(item domain.PromotedItem) ([]domain.DailyOffer, error) {
	if item.Kind == domain.PromotedNone || item.ID == "" {
		return nil, fmt.Errorf("promoted item reference is required")
	}
	return s.offers.ListByPromoted(item)
}

// Deactivate выключает предложение (soft delete); история продаж сохраняется.
func (s *Service) Deactivate(id string) error {
	offer, err := s.offers.Get(id)
	if err != nil {
		return err
	}
	if !offer.IsActive {
		return nil
	}
	offer.IsActive = false
	offer.UpdatedAt = s.now()
	if err := s.offers.Save(offer); err != nil {
		return err
	}

	s.logger.WithField("offer_id", id).Info("daily offer deactivated")
	return nil
}

// IsValid сообщает, действует ли предложение прямо сейчас: оно активно,
// сегодняшняя дата в окне действия и лимит продаж не исчерпан.
func (s *Service) IsValid(id string) (bool, error) {
	offer, err := s.offers.Get(id)
	if err != nil {
		return false, err
	}
	return offer.IsValidOn(s.now()), nil
}

// RecordSale фиксирует продажу qty единиц по предложению.
// Проверка валидности и инкремент продаж атомарны на уровне репозитория:
// при конкурентных продажах лимит не может быть превышен.
func (s *Service) RecordSale(id string, qty int32) (domain.DailyOffer, error) {
	if qty <= 0 {
		return domain.DailyOffer{}, domain.ErrItemQtyInvalid
	}

	offer, err := s.offers.Get(id)
	if err != nil {
		return domain.DailyOffer{}, err
	}
	if !offer.IsValidOn(s.now()) {
		return domain.DailyOffer{}, domain.ErrOfferNotValid
	}

	updated, err := s.offers.RecordSale(id, qty)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			if s.metrics != nil {
				s.metrics.RecordQuotaExceeded()
			}
			s.logger.WithFields(log.Fields{
				"offer_id": id,
				"qty":      qty,
			}).Warn("offer sale rejected: quantity limit reached")
		}
		return domain.DailyOffer{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOfferSale()
	}
	s.emitSaleEvent(&updated, qty)

	s.logger.WithFields(log.Fields{
		"offer_id": updated.ID,
		"qty":      qty,
		"sold":     updated.SoldQuantity,
	}).Info("offer sale recorded")
	return updated, nil
}

func (s *Service) emitSaleEvent(offer *domain.DailyOffer, qty int32) {
	if s.outbox == nil {
		return
	}

	payload := map[string]interface{}{
		"offer_id": offer.ID,
		"qty":      qty,
		"sold":     offer.SoldQuantity,
		"ts":       offer.UpdatedAt.Format(time.RFC3339Nano),
	}
	if offer.LimitQuantity != nil {
		payload["limit"] = *offer.LimitQuantity
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("offer_id", offer.ID).Error("marshal sale event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "offer",
		AggregateID:   offer.ID,
		EventType:     string(kafka.EventTypeOfferSaleRecorded),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("offer_id", offer.ID).Error("enqueue sale event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
