package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func makeOffer() domain.DailyOffer {
	limit := int32(10)
	return domain.DailyOffer{
		ID:                 "offer-1",
		Title:              "Sci-fi week",
		Description:        "Classic science fiction at a discount",
		OriginalPriceMinor: 2000,
		OfferPriceMinor:    1500,
		StartDate:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		IsActive:           true,
		Promoted:           domain.PromotedItem{Kind: domain.PromotedBook, ID: "book-1"},
		LimitQuantity:      &limit,
		SoldQuantity:       0,
	}
}

func TestOfferIsValidOn(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.DailyOffer)
		day  time.Time
		want bool
	}{
		{
			name: "inside window",
			day:  time.Date(2026, 8, 15, 13, 45, 0, 0, time.UTC),
			want: true,
		},
		{
			// Границы окна включительны.
			name: "start date inclusive",
			day:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "end date inclusive",
			day:  time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC),
			want: true,
		},
		{
			name: "before window",
			day:  time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC),
			want: false,
		},
		{
			name: "after window",
			day:  time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "inactive",
			mut:  func(o *domain.DailyOffer) { o.IsActive = false },
			day:  time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "sold out",
			mut:  func(o *domain.DailyOffer) { o.SoldQuantity = 10 },
			day:  time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "no limit never sells out",
			mut: func(o *domain.DailyOffer) {
				o.LimitQuantity = nil
				o.SoldQuantity = 100000
			},
			day:  time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offer := makeOffer()
			if tc.mut != nil {
				tc.mut(&offer)
			}
			if got := offer.IsValidOn(tc.day); got != tc.want {
				t.Fatalf("expected valid=%v, got %v", tc.want, got)
			}
		})
	}
}

func TestOfferRecalculateDiscount(t *testing.T) {
	cases := []struct {
		name     string
		original int64
		offer    int64
		want     int32
		unset    bool
	}{
		{name: "quarter off", original: 2000, offer: 1500, want: 25},
		{name: "rounds half up", original: 800, offer: 700, want: 13}, // 12.5% -> 13
		{name: "rounds down below half", original: 900, offer: 800, want: 11},
		{name: "no discount", original: 2000, offer: 2000, want: 0},
		{name: "zero original unsets", original: 0, offer: 100, unset: true},
		{name: "zero offer unsets", original: 100, offer: 0, unset: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stale := int32(99)
			offer := makeOffer()
			offer.OriginalPriceMinor = tc.original
			offer.OfferPriceMinor = tc.offer
			offer.DiscountPercentage = &stale

			offer.RecalculateDiscount()

			if tc.unset {
				if offer.DiscountPercentage != nil {
					t.Fatalf("expected discount to be unset, got %d", *offer.DiscountPercentage)
				}
				return
			}
			if offer.DiscountPercentage == nil {
				t.Fatal("expected discount to be set")
			}
			if *offer.DiscountPercentage != tc.want {
				t.Fatalf("expected discount %d%%, got %d%%", tc.want, *offer.DiscountPercentage)
			}
		})
	}
}

func TestOfferValidate(t *testing.T) {
	offer := makeOffer()
	if errs := offer.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	cases := []struct {
		name string
		mut  func(o *domain.DailyOffer)
	}{
		{name: "no title", mut: func(o *domain.DailyOffer) { o.Title = "" }},
		{name: "offer above original", mut: func(o *domain.DailyOffer) { o.OfferPriceMinor = 3000 }},
		{name: "zero price", mut: func(o *domain.DailyOffer) { o.OfferPriceMinor = 0 }},
		{name: "end before start", mut: func(o *domain.DailyOffer) { o.EndDate = o.StartDate.AddDate(0, 0, -1) }},
		{name: "sold above limit", mut: func(o *domain.DailyOffer) { o.SoldQuantity = 11 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offer := makeOffer()
			tc.mut(&offer)
			if len(offer.Validate()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}
