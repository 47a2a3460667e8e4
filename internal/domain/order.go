package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в магазине.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — оплата получена, заказ подтверждён.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается на складе.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён, сток возвращён на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Known сообщает, относится ли значение к известным статусам заказа.
func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus описывает состояние оплаты — независимая от статуса заказа ось.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Known сообщает, относится ли значение к известным статусам оплаты.
func (s PaymentStatus) Known() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	}
	return false
}

// OrderItem представляет одну позицию заказа.
// Цена, название и автор — снимок книги на момент оформления; они намеренно
// не пересчитываются при последующем редактировании или удалении книги.
type OrderItem struct {
	ID     string
	BookID string
	// Quantity — количество экземпляров, всегда >= 1.
	Quantity int32
	// PriceMinor — цена за экземпляр на момент заказа, в минимальных денежных единицах.
	PriceMinor int64
	BookTitle  string
	BookAuthor string
	CreatedAt  time.Time
}

// SubtotalMinor возвращает стоимость позиции: цена × количество.
func (i OrderItem) SubtotalMinor() int64 {
	return i.PriceMinor * int64(i.Quantity)
}

// Order агрегирует заказ и его позиции. Позиции принадлежат заказу:
// создаются и удаляются вместе с ним и не живут дольше него.
type Order struct {
	ID string
	// OrderNumber — человекочитаемый уникальный номер вида ORD-<timestamp>-<suffix>.
	OrderNumber     string
	CustomerID      string
	Items           []OrderItem
	TotalMinor      int64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	ShippingAddress string
	// Notes — свободный текст; причины отмены дописываются в конец, не заменяя прежнее.
	Notes       string
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.SubtotalMinor()
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Cancellable сообщает, может ли заказ быть отменён из текущего статуса.
// Доставленный и уже отменённый заказы отменить нельзя.
func (o *Order) Cancellable() bool {
	return o.Status != OrderStatusDelivered && o.Status != OrderStatusCancelled
}

// AppendNote дописывает заметку в конец notes через перевод строки,
// сохраняя ранее записанный текст.
func (o *Order) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes = o.Notes + "\n" + note
}
