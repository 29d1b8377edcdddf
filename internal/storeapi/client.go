// Package storeapi предоставляет клиент HTTP API магазина для кассового
// терминала: поиск товара по штрихкоду, участники программы лояльности
// и сохранение заказов.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
)

// ErrNotFound возвращается, когда товар или участник не найден на сервере.
var (
	ErrNotFound = errors.New("not found")
	// ErrMemberExists возвращается при повторной регистрации телефона.
	ErrMemberExists = errors.New("member already registered")
)

const requestTimeout = 5 * time.Second

// Client инкапсулирует HTTP-взаимодействие с сервером магазина.
// GET-запросы повторяются при сетевых сбоях; запросы на изменение
// идут без ретраев, чтобы заказ не был сохранён дважды.
type Client struct {
	baseURL    string
	getClient  *http.Client
	sendClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к серверу магазина по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = requestTimeout

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		getClient:  rc.StandardClient(),
		sendClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.getClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.sendClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return ErrMemberExists
	case http.StatusNotFound:
		return ErrNotFound
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status: %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type goodsPayload struct {
	Barcode string  `json:"barcode"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Price   float64 `json:"price"`
	Stock   int64   `json:"stock"`
}

// GetGoodsByBarcode запрашивает товар по штрихкоду.
func (c *Client) GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error) {
	var g goodsPayload
	if err := c.getJSON(ctx, "/api/goods/barcode/"+code, &g); err != nil {
		return nil, err
	}
	return &model.Goods{
		Barcode: g.Barcode,
		Name:    g.Name,
		Type:    g.Type,
		Price:   g.Price,
		Stock:   g.Stock,
	}, nil
}

// GetMember запрашивает участника программы лояльности по телефону.
func (c *Client) GetMember(ctx context.Context, phone string) (*model.Member, error) {
	var m model.Member
	if err := c.getJSON(ctx, "/api/members/"+phone, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMember регистрирует нового участника программы лояльности.
func (c *Client) CreateMember(ctx context.Context, name, phone string) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/members",
		&model.Member{Name: name, Phone: phone}, nil)
}

// UpdateMemberPoints устанавливает новый баланс баллов участника.
func (c *Client) UpdateMemberPoints(ctx context.Context, phone string, points int) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/members/"+phone+"/points",
		map[string]int{"points": points}, nil)
}

type orderItemPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Qty      int     `json:"qty"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

type orderPayload struct {
	Member         *model.Member      `json:"member,omitempty"`
	Items          []orderItemPayload `json:"items"`
	PaymentType    string             `json:"paymentType"`
	Cash           float64            `json:"cash"`
	Discount       float64            `json:"discount"`
	RedeemedPoints int                `json:"redeemedPoints"`
	EarnedPoints   int                `json:"earnedPoints"`
	PointsBefore   int                `json:"pointsBefore"`
	Date           string             `json:"date"`
}

type orderResult struct {
	ReceiptNo int64 `json:"receiptNo"`
}

// CreateOrder отправляет завершённую транзакцию на сохранение и
// возвращает присвоенный сервером номер чека.
func (c *Client) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	payload := orderPayload{
		Member:         o.Member,
		PaymentType:    string(o.PaymentType),
		Cash:           o.CashReceived,
		Discount:       o.Discount,
		RedeemedPoints: o.RedeemedPoints,
		EarnedPoints:   o.EarnedPoints,
		PointsBefore:   o.PointsBefore,
		Date:           o.Date.Format(time.RFC3339),
	}
	for _, l := range o.Lines {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:       l.ID,
			Name:     l.Name,
			Qty:      l.Quantity,
			Price:    l.Price,
			Discount: l.Discount,
		})
	}

	var res orderResult
	if err := c.sendJSON(ctx, http.MethodPost, "/api/orders", &payload, &res); err != nil {
		return 0, err
	}
	return res.ReceiptNo, nil
}
