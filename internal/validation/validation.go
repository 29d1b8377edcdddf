// Package validation содержит проверки данных заказа, общие для
// кассового терминала и серверного API.
package validation

import (
	"errors"
	"strings"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
)

// Ошибки валидации заказа. Каждое нарушенное предусловие получает
// собственную ошибку, чтобы оператор видел, какое именно поле не заполнено.
var (
	ErrEmptyOrder     = errors.New("order has no items")
	ErrNoCashReceived = errors.New("cash received is required for cash payment")
	ErrBadPaymentType = errors.New("unknown payment type")
	ErrEmptyName      = errors.New("item name is required")
	ErrBadQuantity    = errors.New("item quantity must be a positive number")
	ErrNegativePrice  = errors.New("item price must not be negative")
	ErrEmptyPhone     = errors.New("member phone is required")
	ErrNegativePoints = errors.New("points must not be negative")
)

// NormalizeBarcode приводит отсканированный или введённый код к каноническому
// виду. Пустая строка после обрезки пробелов означает отсутствие кода.
func NormalizeBarcode(code string) string {
	return strings.TrimSpace(code)
}

// ValidatePhone проверяет телефон участника. Формат номера намеренно
// не проверяется: контракт ограничивается непустой строкой.
func ValidatePhone(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrEmptyPhone
	}
	return nil
}

// ValidateLine проверяет позицию заказа перед добавлением в чек.
func ValidateLine(name string, quantity int, price float64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if quantity < 1 {
		return ErrBadQuantity
	}
	if price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// ValidateOrder проверяет предусловия оформления заказа: корзина не пуста,
// способ оплаты известен, при оплате наличными указана полученная сумма.
func ValidateOrder(o *model.Order) error {
	if o == nil || len(o.Lines) == 0 {
		return ErrEmptyOrder
	}

	for _, l := range o.Lines {
		if err := ValidateLine(l.Name, l.Quantity, l.Price); err != nil {
			return err
		}
	}

	switch o.PaymentType {
	case model.PaymentCash:
		if o.CashReceived <= 0 {
			return ErrNoCashReceived
		}
	case model.PaymentTransfer:
	default:
		return ErrBadPaymentType
	}

	return nil
}
