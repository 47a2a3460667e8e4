package domain

import "time"

// PromotedKind перечисляет варианты продвигаемого товара предложения.
type PromotedKind string

const (
	// PromotedNone — предложение ни к чему не привязано.
	PromotedNone PromotedKind = ""
	// PromotedBook — предложение продвигает книгу.
	PromotedBook PromotedKind = "book"
	// PromotedPack — предложение продвигает набор книг.
	PromotedPack PromotedKind = "pack"
)

// PromotedItem — tagged-вариант ссылки предложения: книга, набор или ничего.
// Взаимоисключаемость книга/набор выражена структурно, а не двумя nullable-полями.
type PromotedItem struct {
	Kind PromotedKind
	ID   string
}

// DailyOffer описывает ежедневное предложение: скидка в фиксированном окне дат
// с опциональным потолком продаж.
type DailyOffer struct {
	ID          string
	Title       string
	Description string
	// OriginalPriceMinor и OfferPriceMinor — цены в минимальных денежных единицах, обе > 0.
	OriginalPriceMinor int64
	OfferPriceMinor    int64
	// DiscountPercentage — производное поле; nil, пока цены не заданы корректно.
	DiscountPercentage *int32
	ImageURL           string
	// StartDate и EndDate — границы окна действия, только дата, включительно.
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
	Promoted  PromotedItem
	// LimitQuantity — потолок продаж; nil означает без ограничения.
	LimitQuantity *int32
	// SoldQuantity растёт монотонно и никогда не превышает LimitQuantity.
	SoldQuantity int32
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DateOnly усекает момент времени до даты в его локации.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsValidOn сообщает, действует ли предложение в указанный день: оно активно,
// день попадает в окно [StartDate, EndDate] и потолок продаж не исчерпан.
func (o *DailyOffer) IsValidOn(today time.Time) bool {
	day := DateOnly(today)
	if !o.IsActive {
		return false
	}
	if day.Before(DateOnly(o.StartDate)) || day.After(DateOnly(o.EndDate)) {
		return false
	}
	if o.LimitQuantity != nil && o.SoldQuantity >= *o.LimitQuantity {
		return false
	}
	return true
}

// RecalculateDiscount пересчитывает производный процент скидки:
// round-half-up от (original-offer)/original*100. Поле сбрасывается в nil,
// если цены не заданы корректно.
func (o *DailyOffer) RecalculateDiscount() {
	if o.OriginalPriceMinor <= 0 || o.OfferPriceMinor <= 0 {
		o.DiscountPercentage = nil
		return
	}
	diff := o.OriginalPriceMinor - o.OfferPriceMinor
	// Целочисленное округление half-up: floor((diff*100 + original/2) / original).
	pct := int32((diff*200 + o.OriginalPriceMinor) / (2 * o.OriginalPriceMinor))
	o.DiscountPercentage = &pct
}

// Validate проверяет инварианты предложения.
func (o *DailyOffer) Validate() []error {
	var errs []error

	if o.Title == "" {
		errs = append(errs, ErrOfferTitleRequired)
	}
	if o.OriginalPriceMinor <= 0 || o.OfferPriceMinor <= 0 || o.OfferPriceMinor > o.OriginalPriceMinor {
		errs = append(errs, ErrOfferPriceInvalid)
	}
	if DateOnly(o.EndDate).Before(DateOnly(o.StartDate)) {
		errs = append(errs, ErrOfferDatesInvalid)
	}
	if o.LimitQuantity != nil && o.SoldQuantity > *o.LimitQuantity {
		errs = append(errs, ErrSoldAboveLimit)
	}

	return errs
}
