package domain

import "time"

// Book описывает книгу каталога. Для ядра заказов важны цена и сток,
// остальные поля — карточка товара.
type Book struct {
	ID     string
	ISBN   string
	Title  string
	Author string
	// PriceMinor — текущая цена в минимальных денежных единицах (копейки/центы).
	PriceMinor int64
	// StockQuantity — доступный остаток на складе, никогда не бывает отрицательным.
	StockQuantity   int32
	Description     string
	Category        string
	Publisher       string
	PublicationYear int32
	IsActive        bool
	IsFeatured      bool
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate проверяет инварианты книги.
func (b *Book) Validate() []error {
	var errs []error

	if b.PriceMinor < 0 {
		errs = append(errs, ErrItemPriceInvalid)
	}
	if b.StockQuantity < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
