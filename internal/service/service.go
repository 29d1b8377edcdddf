// Package service реализует бизнес-логику POS-сервера Tukjai.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
	"github.com/Jar-Mar/tukjaishop-pos/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateGoods(ctx context.Context, g *model.Goods) (int64, error)
	GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error)
	CreateMember(ctx context.Context, m *model.Member) (int64, error)
	GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error)
	UpdateMemberPoints(ctx context.Context, phone string, points int) error
	CreateOrder(ctx context.Context, o *model.Order) (int64, error)
	ListOrders(ctx context.Context, from, to time.Time) ([]model.Order, error)
	GetDailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error)
}

// Service содержит бизнес-логику POS-сервера Tukjai.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateGoods добавляет товар в каталог.
func (s *Service) CreateGoods(ctx context.Context, g *model.Goods) (int64, error) {
	if err := validation.ValidateLine(g.Name, 1, g.Price); err != nil {
		return 0, err
	}
	g.Barcode = validation.NormalizeBarcode(g.Barcode)
	return s.repo.CreateGoods(ctx, g)
}

// GetGoodsByBarcode возвращает товар по штрихкоду.
func (s *Service) GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error) {
	return s.repo.GetGoodsByBarcode(ctx, validation.NormalizeBarcode(code))
}

// RegisterMember регистрирует нового участника программы лояльности.
func (s *Service) RegisterMember(ctx context.Context, m *model.Member) (int64, error) {
	if err := validation.ValidatePhone(m.Phone); err != nil {
		return 0, err
	}
	if strings.TrimSpace(m.Name) == "" {
		return 0, validation.ErrEmptyName
	}
	if m.Points < 0 {
		return 0, validation.ErrNegativePoints
	}
	m.Phone = strings.TrimSpace(m.Phone)
	return s.repo.CreateMember(ctx, m)
}

// GetMemberByPhone возвращает участника по номеру телефона.
func (s *Service) GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error) {
	if err := validation.ValidatePhone(phone); err != nil {
		return nil, err
	}
	return s.repo.GetMemberByPhone(ctx, strings.TrimSpace(phone))
}

// UpdateMemberPoints устанавливает новый баланс баллов участника.
func (s *Service) UpdateMemberPoints(ctx context.Context, phone string, points int) error {
	if err := validation.ValidatePhone(phone); err != nil {
		return err
	}
	if points < 0 {
		return validation.ErrNegativePoints
	}
	return s.repo.UpdateMemberPoints(ctx, strings.TrimSpace(phone), points)
}

// SubmitOrder проверяет и сохраняет заказ, возвращая номер чека.
// Производные суммы пересчитываются на сервере: терминал мог прислать
// значения, разошедшиеся с позициями чека.
func (s *Service) SubmitOrder(ctx context.Context, o *model.Order) (int64, error) {
	if err := validation.ValidateOrder(o); err != nil {
		return 0, err
	}

	var grand float64
	for _, l := range o.Lines {
		grand += l.Total()
	}
	o.GrandTotal = grand
	o.NetTotal = grand - o.Discount
	if o.PaymentType == model.PaymentCash {
		o.Change = o.CashReceived - o.NetTotal
	} else {
		o.Change = 0
	}

	if o.Date.IsZero() {
		o.Date = time.Now()
	}

	return s.repo.CreateOrder(ctx, o)
}

// normalizePeriod подставляет границы периода по умолчанию: с начала
// времён по завтрашний день.
func normalizePeriod(from, to time.Time) (time.Time, time.Time) {
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	if to.IsZero() {
		to = time.Now().AddDate(0, 0, 1)
	}
	return from, to
}

// ListOrders возвращает заказы за период, сначала самые новые.
func (s *Service) ListOrders(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	from, to = normalizePeriod(from, to)
	return s.repo.ListOrders(ctx, from, to)
}

// GetDailySales возвращает выручку по дням за период.
func (s *Service) GetDailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error) {
	from, to = normalizePeriod(from, to)
	return s.repo.GetDailySales(ctx, from, to)
}
