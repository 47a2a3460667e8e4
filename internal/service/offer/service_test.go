package offer_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/offer"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func newService(t *testing.T) (*offer.Service, domain.OfferRepository, domain.OutboxRepository) {
	t.Helper()

	baseLogger := log.New()
	baseLogger.SetLevel(log.ErrorLevel)

	offers := memory.NewOfferRepository()
	outbox := memory.NewOutboxRepository()
	svc := offer.NewServiceWithoutMetrics(offers, outbox, baseLogger.WithField("component", "test"))
	return svc, offers, outbox
}

func int32p(v int32) *int32 { return &v }

func validInput() offer.CreateInput {
	today := time.Now().UTC()
	return offer.CreateInput{
		Title:              "Dune boxed set",
		OriginalPriceMinor: 8000,
		OfferPriceMinor:    6000,
		StartDate:          today.AddDate(0, 0, -1),
		EndDate:            today.AddDate(0, 0, 1),
		LimitQuantity:      int32p(10),
	}
}

func TestCreateOffer(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(validInput())
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if !created.IsActive {
		t.Fatal("new offer must be active")
	}
	if created.SoldQuantity != 0 {
		t.Fatalf("new offer must start with zero sales, got %d", created.SoldQuantity)
	}
	if created.DiscountPercentage == nil || *created.DiscountPercentage != 25 {
		t.Fatalf("expected 25%% discount, got %v", created.DiscountPercentage)
	}
}

func TestCreateOfferValidation(t *testing.T) {
	svc, _, _ := newService(t)

	cases := []struct {
		name   string
		mutate func(*offer.CreateInput)
		want   error
	}{
		{"missing title", func(in *offer.CreateInput) { in.Title = "" }, domain.ErrOfferTitleRequired},
		{"offer above original", func(in *offer.CreateInput) { in.OfferPriceMinor = 9000 }, domain.ErrOfferPriceInvalid},
		{"zero original", func(in *offer.CreateInput) { in.OriginalPriceMinor = 0 }, domain.ErrOfferPriceInvalid},
		{"end before start", func(in *offer.CreateInput) {
			in.StartDate = time.Now().AddDate(0, 0, 2)
			in.EndDate = time.Now()
		}, domain.ErrOfferDatesInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			if _, err := svc.Create(input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdateRecalculatesDiscount(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(validInput())
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	newPrice := int64(7000)
	updated, err := svc.Update(created.ID, offer.UpdateInput{OfferPriceMinor: &newPrice})
	if err != nil {
		t.Fatalf("update offer: %v", err)
	}
	// 1000/8000 = 12.5%, округляется вверх до 13.
	if updated.DiscountPercentage == nil || *updated.DiscountPercentage != 13 {
		t.Fatalf("expected 13%% discount, got %v", updated.DiscountPercentage)
	}
}

func TestDeactivate(t *testing.T) {
	svc, offers, _ := newService(t)

	created, err := svc.Create(validInput())
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if err := svc.Deactivate(created.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	stored, _ := offers.Get(created.ID)
	if stored.IsActive {
		t.Fatal("offer must be inactive after deactivate")
	}

	// Повторная деактивация — no-op.
	if err := svc.Deactivate(created.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}

	valid, err := svc.IsValid(created.ID)
	if err != nil || valid {
		t.Fatalf("deactivated offer must not be valid (err %v)", err)
	}
}

func TestIsValidWindow(t *testing.T) {
	svc, _, _ := newService(t)

	input := validInput()
	input.StartDate = time.Now().UTC().AddDate(0, 0, 3)
	input.EndDate = time.Now().UTC().AddDate(0, 0, 5)
	created, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	valid, err := svc.IsValid(created.ID)
	if err != nil {
		t.Fatalf("is valid: %v", err)
	}
	if valid {
		t.Fatal("offer before its start date must not be valid")
	}
}

func TestRecordSale(t *testing.T) {
	svc, _, outbox := newService(t)

	created, err := svc.Create(validInput())
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	updated, err := svc.RecordSale(created.ID, 3)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if updated.SoldQuantity != 3 {
		t.Fatalf("expected sold 3, got %d", updated.SoldQuantity)
	}

	stats, err := outbox.Stats()
	if err != nil || stats.PendingCount != 1 {
		t.Fatalf("expected one pending sale event, got %d (err %v)", stats.PendingCount, err)
	}
}

func TestRecordSaleQuotaExceeded(t *testing.T) {
	svc, offers, _ := newService(t)

	input := validInput()
	input.LimitQuantity = int32p(5)
	created, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if _, err := svc.RecordSale(created.ID, 4); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := svc.RecordSale(created.ID, 2); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	stored, _ := offers.Get(created.ID)
	if stored.SoldQuantity != 4 {
		t.Fatalf("rejected sale must not move the counter, got %d", stored.SoldQuantity)
	}
}

func TestRecordSaleSoldOutOfferNotValid(t *testing.T) {
	svc, _, _ := newService(t)

	input := validInput()
	input.LimitQuantity = int32p(2)
	created, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if _, err := svc.RecordSale(created.ID, 2); err != nil {
		t.Fatalf("sell out: %v", err)
	}
	// Исчерпанный лимит делает предложение недействительным.
	if _, err := svc.RecordSale(created.ID, 1); !errors.Is(err, domain.ErrOfferNotValid) {
		t.Fatalf("expected ErrOfferNotValid for sold out offer, got %v", err)
	}
}

func TestRecordSaleOutsideWindow(t *testing.T) {
	svc, _, _ := newService(t)

	input := validInput()
	input.StartDate = time.Now().UTC().AddDate(0, 0, -10)
	input.EndDate = time.Now().UTC().AddDate(0, 0, -5)
	created, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if _, err := svc.RecordSale(created.ID, 1); !errors.Is(err, domain.ErrOfferNotValid) {
		t.Fatalf("expected ErrOfferNotValid, got %v", err)
	}
}

func TestRecordSaleInvalidQty(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(validInput())
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if _, err := svc.RecordSale(created.ID, 0); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid, got %v", err)
	}
}

// Конкурентные продажи никогда не превышают лимит.
func TestRecordSaleConcurrentNeverOversells(t *testing.T) {
	svc, offers, _ := newService(t)

	input := validInput()
	input.LimitQuantity = int32p(30)
	created, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RecordSale(created.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, _ := offers.Get(created.ID)
	if stored.SoldQuantity != 30 {
		t.Fatalf("expected exactly 30 sold, got %d", stored.SoldQuantity)
	}
	if succeeded != 30 {
		t.Fatalf("expected exactly 30 successful sales, got %d", succeeded)
	}
}
