// Package model содержит доменные сущности POS-системы Tukjai.
package model

import "time"

// Goods описывает товар из каталога магазина.
type Goods struct {
	Barcode  string
	Name     string
	Type     string
	Cost     float64
	Price    float64
	Stock    int64
	Supplier string
}

// Member представляет участника программы лояльности, идентифицируемого по телефону.
type Member struct {
	Phone  string `json:"phone"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// PaymentType описывает способ оплаты заказа.
type PaymentType string

const (
	PaymentCash     PaymentType = "cash"
	PaymentTransfer PaymentType = "transfer"
)

// ManualLineID — идентификатор позиции, введённой оператором без штрихкода.
const ManualLineID = "99"

// OrderLine описывает одну позицию заказа.
type OrderLine struct {
	ID       string
	Name     string
	Quantity int
	Price    float64
	Discount float64
}

// Total возвращает сумму по позиции: quantity*price - discount.
// Отрицательный результат не обрезается — скидка больше стоимости
// позиции остаётся видимой оператору как есть.
func (l OrderLine) Total() float64 {
	return float64(l.Quantity)*l.Price - l.Discount
}

// Order описывает завершённую транзакцию, отправляемую на сохранение.
type Order struct {
	Member         *Member
	Lines          []OrderLine
	PaymentType    PaymentType
	CashReceived   float64
	GrandTotal     float64
	Discount       float64
	NetTotal       float64
	Change         float64
	RedeemedPoints int
	EarnedPoints   int
	PointsBefore   int
	Date           time.Time
}

// DailySales содержит выручку магазина за один день для отчёта по продажам.
type DailySales struct {
	Date    time.Time
	Orders  int
	Revenue float64
}
