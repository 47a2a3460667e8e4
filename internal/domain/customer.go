package domain

import "time"

// Customer описывает клиента магазина. Адрес используется как адрес доставки
// по умолчанию, если при оформлении заказа адрес не указан.
type Customer struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error

	if c.Email == "" {
		errs = append(errs, ErrEmailRequired)
	}

	return errs
}
