package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
	"github.com/Jar-Mar/tukjaishop-pos/internal/storeapi"
	"github.com/Jar-Mar/tukjaishop-pos/internal/validation"
)

// Status описывает состояние оформления транзакции.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
)

// MemberStatus описывает результат поиска участника программы лояльности.
type MemberStatus string

const (
	MemberUnset MemberStatus = "unset"
	MemberFound MemberStatus = "found"
	MemberNew   MemberStatus = "new"
)

// Capabilities включает необязательные функции кассы. Все экраны
// оформления заказа сведены к одному компоненту, параметризованному
// этим набором флагов.
type Capabilities struct {
	Loyalty             bool
	MemberLookup        bool
	RemoteProductLookup bool
}

// StoreClient описывает операции сервера магазина, используемые кассой.
type StoreClient interface {
	GoodsSource
	GetMember(ctx context.Context, phone string) (*model.Member, error)
	CreateMember(ctx context.Context, name, phone string) error
	UpdateMemberPoints(ctx context.Context, phone string, points int) error
	CreateOrder(ctx context.Context, o *model.Order) (int64, error)
}

var _ StoreClient = (*storeapi.Client)(nil)

// CheckoutResult содержит сохранённый заказ и присвоенный номер чека.
type CheckoutResult struct {
	Order     *model.Order
	ReceiptNo int64
}

// Session держит состояние одной кассовой смены: текущую транзакцию
// целиком — корзину, участника, способ оплаты и статус оформления.
// Одновременно оформляется не более одной транзакции; все операции
// вызываются из цикла событий терминала.
type Session struct {
	client   StoreClient
	resolver *Resolver
	caps     Capabilities
	logger   *zap.Logger

	status       Status
	cart         Cart
	pendingCode  string
	member       *model.Member
	memberStatus MemberStatus
	paymentType  model.PaymentType
	cashReceived float64
	redeemPoints int
}

// NewSession создаёт кассовую сессию в состоянии Idle с оплатой наличными
// по умолчанию.
func NewSession(client StoreClient, resolver *Resolver, caps Capabilities, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !caps.RemoteProductLookup && resolver != nil {
		// Касса без удалённого поиска работает только по локальной таблице.
		resolver = &Resolver{local: resolver.local, beeper: resolver.beeper, logger: resolver.logger}
	}
	return &Session{
		client:      client,
		resolver:    resolver,
		caps:        caps,
		logger:      logger,
		status:      StatusIdle,
		paymentType: model.PaymentCash,
	}
}

// Status возвращает текущее состояние оформления.
func (s *Session) Status() Status {
	return s.status
}

// Lines возвращает позиции текущего чека в порядке добавления.
func (s *Session) Lines() []model.OrderLine {
	return s.cart.Lines()
}

// PendingCode возвращает код, оставшийся в поле ввода после
// безуспешного сканирования.
func (s *Session) PendingCode() string {
	return s.pendingCode
}

// Member возвращает привязанного участника и результат его поиска.
func (s *Session) Member() (*model.Member, MemberStatus) {
	return s.member, s.memberStatus
}

func (s *Session) syncStatus() {
	switch {
	case s.status == StatusSubmitting:
	case s.cart.Empty():
		s.status = StatusIdle
	default:
		s.status = StatusEditing
	}
}

// AddLine добавляет позицию в чек, объединяя повторы по идентификатору.
func (s *Session) AddLine(id, name string, price float64, quantity int) error {
	cart, err := s.cart.AddLine(id, name, price, quantity)
	if err != nil {
		return err
	}
	s.cart = cart
	s.pendingCode = ""
	s.syncStatus()
	return nil
}

// UpdateQuantity устанавливает количество для позиции чека.
func (s *Session) UpdateQuantity(id string, quantity int) error {
	cart, err := s.cart.UpdateQuantity(id, quantity)
	if err != nil {
		return err
	}
	s.cart = cart
	return nil
}

// UpdateDiscount устанавливает скидку для позиции чека.
func (s *Session) UpdateDiscount(id string, amount float64) error {
	cart, err := s.cart.UpdateDiscount(id, amount)
	if err != nil {
		return err
	}
	s.cart = cart
	return nil
}

// RemoveLine удаляет позицию из чека.
func (s *Session) RemoveLine(id string) {
	s.cart = s.cart.RemoveLine(id)
	s.syncStatus()
}

// Scan обрабатывает отсканированный или введённый код. Найденный товар
// сразу добавляется в чек. Если товар не найден, код остаётся в поле
// ввода для ручного заполнения остальных полей; ошибкой это не считается.
func (s *Session) Scan(ctx context.Context, code string) (*model.Goods, bool) {
	code = validation.NormalizeBarcode(code)
	if code == "" {
		return nil, false
	}

	g, ok := s.resolver.Resolve(ctx, code)
	if !ok {
		s.pendingCode = code
		return nil, false
	}

	if err := s.AddLine(g.Barcode, g.Name, g.Price, 1); err != nil {
		// Каталог вернул товар без имени или с отрицательной ценой:
		// отдаём код оператору, как при отсутствии товара.
		s.logger.Warn("scanned goods rejected by cart", zap.String("barcode", code), zap.Error(err))
		s.pendingCode = code
		return nil, false
	}
	return g, true
}

// LookupMember ищет участника по телефону. Ненайденный телефон
// помечает участника как нового: он будет зарегистрирован при
// оформлении заказа.
func (s *Session) LookupMember(ctx context.Context, phone string) error {
	if !s.caps.MemberLookup {
		return nil
	}
	if err := validation.ValidatePhone(phone); err != nil {
		return err
	}

	m, err := s.client.GetMember(ctx, phone)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			s.member = &model.Member{Phone: phone}
			s.memberStatus = MemberNew
			s.redeemPoints = 0
			return nil
		}
		return fmt.Errorf("member lookup: %w", err)
	}

	s.member = m
	s.memberStatus = MemberFound
	s.redeemPoints = 0
	return nil
}

// SetMemberName заполняет имя нового участника перед регистрацией.
func (s *Session) SetMemberName(name string) {
	if s.member != nil {
		s.member.Name = name
	}
}

// ClearMember отвязывает участника от транзакции.
func (s *Session) ClearMember() {
	s.member = nil
	s.memberStatus = MemberUnset
	s.redeemPoints = 0
}

// SetRedeemPoints запоминает число списываемых баллов. Значение сверх
// баланса участника обрезается до баланса прямо при вводе.
func (s *Session) SetRedeemPoints(points int) {
	if !s.caps.Loyalty || s.member == nil {
		s.redeemPoints = 0
		return
	}
	if points < 0 {
		points = 0
	}
	if points > s.member.Points {
		points = s.member.Points
	}
	s.redeemPoints = points
}

// RedeemPoints возвращает текущее число списываемых баллов.
func (s *Session) RedeemPoints() int {
	return s.redeemPoints
}

// SetPaymentType выбирает способ оплаты.
func (s *Session) SetPaymentType(pt model.PaymentType) {
	s.paymentType = pt
}

// SetCashReceived запоминает полученную от покупателя сумму.
func (s *Session) SetCashReceived(amount float64) {
	s.cashReceived = amount
}

// GrandTotal возвращает сумму чека до списания баллов.
func (s *Session) GrandTotal() float64 {
	return s.cart.GrandTotal()
}

// Discount возвращает скидку за списываемые баллы с учётом всех ограничений.
func (s *Session) Discount() float64 {
	if s.member == nil {
		return 0
	}
	return float64(ClampRedeem(s.redeemPoints, s.member.Points, s.GrandTotal()))
}

// NetTotal возвращает сумму к оплате после списания баллов.
func (s *Session) NetTotal() float64 {
	return s.GrandTotal() - s.Discount()
}

// Change возвращает сдачу. Для безналичной оплаты сдача не считается.
func (s *Session) Change() float64 {
	if s.paymentType != model.PaymentCash {
		return 0
	}
	return s.cashReceived - s.NetTotal()
}

func (s *Session) buildOrder() *model.Order {
	grand := s.GrandTotal()
	redeem := 0
	pointsBefore := 0
	var member *model.Member
	if s.member != nil {
		redeem = ClampRedeem(s.redeemPoints, s.member.Points, grand)
		pointsBefore = s.member.Points
		m := *s.member
		member = &m
	}

	net := grand - float64(redeem)
	change := 0.0
	if s.paymentType == model.PaymentCash {
		change = s.cashReceived - net
	}

	return &model.Order{
		Member:         member,
		Lines:          s.cart.Lines(),
		PaymentType:    s.paymentType,
		CashReceived:   s.cashReceived,
		GrandTotal:     grand,
		Discount:       float64(redeem),
		NetTotal:       net,
		Change:         change,
		RedeemedPoints: redeem,
		EarnedPoints:   EarnedPoints(net, member != nil),
		PointsBefore:   pointsBefore,
		Date:           time.Now(),
	}
}

func (s *Session) reset() {
	s.cart = Cart{}
	s.pendingCode = ""
	s.member = nil
	s.memberStatus = MemberUnset
	s.paymentType = model.PaymentCash
	s.cashReceived = 0
	s.redeemPoints = 0
	s.status = StatusIdle
}

// Checkout завершает транзакцию: проверяет предусловия, при
// необходимости регистрирует нового участника, отправляет заказ на
// сохранение и очищает состояние кассы. При любой ошибке введённые
// данные сохраняются, касса возвращается в режим редактирования.
func (s *Session) Checkout(ctx context.Context) (*CheckoutResult, error) {
	if s.cart.Empty() {
		return nil, validation.ErrEmptyOrder
	}
	if s.paymentType == model.PaymentCash && s.cashReceived <= 0 {
		return nil, validation.ErrNoCashReceived
	}

	s.status = StatusSubmitting

	// Новый участник регистрируется строго до отправки заказа: заказ
	// ссылается на его телефон.
	if s.member != nil && s.memberStatus == MemberNew {
		if err := s.registerMember(ctx); err != nil {
			s.status = StatusEditing
			return nil, err
		}
	}

	order := s.buildOrder()

	receiptNo, err := s.client.CreateOrder(ctx, order)
	if err != nil {
		s.status = StatusEditing
		return nil, fmt.Errorf("submit order: %w", err)
	}

	s.updatePointsBestEffort(ctx, order)

	s.reset()

	return &CheckoutResult{Order: order, ReceiptNo: receiptNo}, nil
}

func (s *Session) registerMember(ctx context.Context) error {
	if err := validation.ValidatePhone(s.member.Phone); err != nil {
		return err
	}

	err := s.client.CreateMember(ctx, s.member.Name, s.member.Phone)
	if err == nil {
		s.memberStatus = MemberFound
		return nil
	}
	// Телефон успели зарегистрировать с другой кассы: заказ можно
	// оформлять на существующего участника.
	if errors.Is(err, storeapi.ErrMemberExists) {
		s.memberStatus = MemberFound
		return nil
	}
	return fmt.Errorf("register member: %w", err)
}

// updatePointsBestEffort обновляет баланс баллов после уже сохранённого
// заказа. Неудача логируется, но заказ не откатывается.
func (s *Session) updatePointsBestEffort(ctx context.Context, order *model.Order) {
	if !s.caps.Loyalty || order.Member == nil {
		return
	}

	newPoints := order.PointsBefore - order.RedeemedPoints + order.EarnedPoints

	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.client.UpdateMemberPoints(ctx, order.Member.Phone, newPoints); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("point balance update failed after order commit",
			zap.String("phone", order.Member.Phone),
			zap.Int("points", newPoints),
			zap.Error(err))
	}
}
