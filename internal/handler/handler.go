// Package handler содержит HTTP-обработчики API POS-сервера Tukjai.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
	"github.com/Jar-Mar/tukjaishop-pos/internal/repository"
	"github.com/Jar-Mar/tukjaishop-pos/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateGoods(ctx context.Context, g *model.Goods) (int64, error)
	GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error)
	RegisterMember(ctx context.Context, m *model.Member) (int64, error)
	GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error)
	UpdateMemberPoints(ctx context.Context, phone string, points int) error
	SubmitOrder(ctx context.Context, o *model.Order) (int64, error)
	ListOrders(ctx context.Context, from, to time.Time) ([]model.Order, error)
	GetDailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error)
}

// Handler реализует HTTP-обработчики API POS-сервера Tukjai.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, validation.ErrEmptyOrder) ||
		errors.Is(err, validation.ErrNoCashReceived) ||
		errors.Is(err, validation.ErrBadPaymentType) ||
		errors.Is(err, validation.ErrEmptyName) ||
		errors.Is(err, validation.ErrBadQuantity) ||
		errors.Is(err, validation.ErrNegativePrice) ||
		errors.Is(err, validation.ErrEmptyPhone) ||
		errors.Is(err, validation.ErrNegativePoints)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type goodsRequest struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Cost     float64 `json:"cost"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
	Supplier string  `json:"supplier"`
}

type goodsResponse struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"name"`
	Type     string  `json:"type,omitempty"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
	Supplier string  `json:"supplier,omitempty"`
}

// CreateGoods добавляет новый товар в каталог.
func (h *Handler) CreateGoods(w http.ResponseWriter, r *http.Request) {
	var req goodsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	g := &model.Goods{
		Barcode:  req.Barcode,
		Name:     req.Name,
		Type:     req.Type,
		Cost:     req.Cost,
		Price:    req.Price,
		Stock:    req.Stock,
		Supplier: req.Supplier,
	}

	id, err := h.service.CreateGoods(r.Context(), g)
	if err != nil {
		if errors.Is(err, repository.ErrGoodsExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create goods error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// GetGoodsByBarcode возвращает товар по штрихкоду.
func (h *Handler) GetGoodsByBarcode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	g, err := h.service.GetGoodsByBarcode(r.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrGoodsNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get goods error", zap.Error(err), zap.String("barcode", code))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, goodsResponse{
		Barcode:  g.Barcode,
		Name:     g.Name,
		Type:     g.Type,
		Price:    g.Price,
		Stock:    g.Stock,
		Supplier: g.Supplier,
	})
}

// GetMember возвращает участника программы лояльности по телефону.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	m, err := h.service.GetMemberByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("get member error", zap.Error(err), zap.String("phone", phone))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// RegisterMember регистрирует нового участника программы лояльности.
func (h *Handler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var m model.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if _, err := h.service.RegisterMember(r.Context(), &m); err != nil {
		if errors.Is(err, repository.ErrMemberExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("register member error", zap.Error(err), zap.String("phone", m.Phone))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

type pointsRequest struct {
	Points int `json:"points"`
}

// UpdateMemberPoints устанавливает новый баланс баллов участника.
func (h *Handler) UpdateMemberPoints(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateMemberPoints(r.Context(), phone, req.Points); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("update points error", zap.Error(err), zap.String("phone", phone))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type orderItemPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Qty      int     `json:"qty"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

type orderRequest struct {
	Member         *model.Member      `json:"member"`
	Items          []orderItemPayload `json:"items"`
	PaymentType    string             `json:"paymentType"`
	Cash           float64            `json:"cash"`
	RedeemedPoints int                `json:"redeemedPoints"`
	EarnedPoints   int                `json:"earnedPoints"`
	PointsBefore   int                `json:"pointsBefore"`
	Discount       float64            `json:"discount"`
	Date           string             `json:"date"`
}

type orderResponse struct {
	ReceiptNo  int64   `json:"receiptNo"`
	GrandTotal float64 `json:"total"`
	NetTotal   float64 `json:"netTotal"`
	Change     float64 `json:"change"`
}

// SubmitOrder сохраняет завершённую транзакцию кассового терминала.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o := &model.Order{
		Member:         req.Member,
		PaymentType:    model.PaymentType(req.PaymentType),
		CashReceived:   req.Cash,
		Discount:       req.Discount,
		RedeemedPoints: req.RedeemedPoints,
		EarnedPoints:   req.EarnedPoints,
		PointsBefore:   req.PointsBefore,
	}
	for _, it := range req.Items {
		o.Lines = append(o.Lines, model.OrderLine{
			ID:       it.ID,
			Name:     it.Name,
			Quantity: it.Qty,
			Price:    it.Price,
			Discount: it.Discount,
		})
	}
	if req.Date != "" {
		if d, err := time.Parse(time.RFC3339, req.Date); err == nil {
			o.Date = d
		}
	}

	receiptNo, err := h.service.SubmitOrder(r.Context(), o)
	if err != nil {
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("submit order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		ReceiptNo:  receiptNo,
		GrandTotal: o.GrandTotal,
		NetTotal:   o.NetTotal,
		Change:     o.Change,
	})
}

func parsePeriod(r *http.Request) (time.Time, time.Time) {
	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			from = d
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			// Верхняя граница исключающая: включаем весь день "to".
			to = d.AddDate(0, 0, 1)
		}
	}
	return from, to
}

type orderListItem struct {
	Member      *model.Member      `json:"member,omitempty"`
	Items       []orderItemPayload `json:"items"`
	PaymentType string             `json:"paymentType"`
	Cash        float64            `json:"cash"`
	Total       float64            `json:"total"`
	NetTotal    float64            `json:"netTotal"`
	Change      float64            `json:"change"`
	Date        string             `json:"date"`
}

// ListOrders возвращает заказы за период, сначала самые новые.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	from, to := parsePeriod(r)

	orders, err := h.service.ListOrders(r.Context(), from, to)
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderListItem, 0, len(orders))
	for _, o := range orders {
		item := orderListItem{
			Member:      o.Member,
			PaymentType: string(o.PaymentType),
			Cash:        o.CashReceived,
			Total:       o.GrandTotal,
			NetTotal:    o.NetTotal,
			Change:      o.Change,
			Date:        o.Date.Format(time.RFC3339),
		}
		for _, l := range o.Lines {
			item.Items = append(item.Items, orderItemPayload{
				ID:       l.ID,
				Name:     l.Name,
				Qty:      l.Quantity,
				Price:    l.Price,
				Discount: l.Discount,
			})
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

type dailySalesResponse struct {
	Date    string  `json:"date"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// GetSalesReport возвращает выручку по дням за период.
func (h *Handler) GetSalesReport(w http.ResponseWriter, r *http.Request) {
	from, to := parsePeriod(r)

	daily, err := h.service.GetDailySales(r.Context(), from, to)
	if err != nil {
		h.logger.Error("sales report error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(daily) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]dailySalesResponse, 0, len(daily))
	for _, d := range daily {
		resp = append(resp, dailySalesResponse{
			Date:    d.Date.Format("2006-01-02"),
			Orders:  d.Orders,
			Revenue: d.Revenue,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
