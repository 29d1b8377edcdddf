package pos

import (
	"context"
	"errors"
	"testing"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
	"github.com/Jar-Mar/tukjaishop-pos/internal/storeapi"
	"github.com/Jar-Mar/tukjaishop-pos/internal/validation"
)

type stubStoreClient struct {
	goods map[string]*model.Goods

	member    *model.Member
	memberErr error

	createMemberErr error
	updatePointsErr error

	receiptNo      int64
	createOrderErr error
	createdOrder   *model.Order

	updatedPoints int
	updatedPhone  string

	calls []string
}

func (s *stubStoreClient) GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error) {
	s.calls = append(s.calls, "getGoods")
	if g, ok := s.goods[code]; ok {
		return g, nil
	}
	return nil, storeapi.ErrNotFound
}

func (s *stubStoreClient) GetMember(ctx context.Context, phone string) (*model.Member, error) {
	s.calls = append(s.calls, "getMember")
	if s.memberErr != nil {
		return nil, s.memberErr
	}
	if s.member == nil {
		return nil, storeapi.ErrNotFound
	}
	return s.member, nil
}

func (s *stubStoreClient) CreateMember(ctx context.Context, name, phone string) error {
	s.calls = append(s.calls, "createMember")
	return s.createMemberErr
}

func (s *stubStoreClient) UpdateMemberPoints(ctx context.Context, phone string, points int) error {
	s.calls = append(s.calls, "updatePoints")
	if s.updatePointsErr != nil {
		return s.updatePointsErr
	}
	s.updatedPhone = phone
	s.updatedPoints = points
	return nil
}

func (s *stubStoreClient) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	s.calls = append(s.calls, "createOrder")
	if s.createOrderErr != nil {
		return 0, s.createOrderErr
	}
	s.createdOrder = o
	return s.receiptNo, nil
}

func allCaps() Capabilities {
	return Capabilities{Loyalty: true, MemberLookup: true, RemoteProductLookup: true}
}

func newTestSession(client *stubStoreClient) *Session {
	resolver := NewResolver(client, DefaultCatalog(), nil, nil)
	return NewSession(client, resolver, allCaps(), nil)
}

func TestSessionScan(t *testing.T) {
	client := &stubStoreClient{goods: map[string]*model.Goods{}}
	s := newTestSession(client)

	// Локальный каталог: товар найден, позиция добавлена.
	if _, ok := s.Scan(context.Background(), " 123456 "); !ok {
		t.Fatalf("expected scan hit for 123456")
	}
	if s.Status() != StatusEditing {
		t.Fatalf("status = %q, want editing", s.Status())
	}
	lines := s.Lines()
	if len(lines) != 1 || lines[0].Name != "Camera Lens" || lines[0].Quantity != 1 {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	// Повторное сканирование объединяется с существующей позицией.
	s.Scan(context.Background(), "123456")
	if got := s.Lines()[0].Quantity; got != 2 {
		t.Fatalf("quantity = %d, want 2", got)
	}

	// Неизвестный код остаётся в поле ввода, чек не меняется.
	if _, ok := s.Scan(context.Background(), "000000"); ok {
		t.Fatalf("expected miss for unknown code")
	}
	if s.PendingCode() != "000000" {
		t.Fatalf("pending code = %q, want 000000", s.PendingCode())
	}
	if len(s.Lines()) != 1 {
		t.Fatalf("miss must not change the cart")
	}

	// Пустой код игнорируется.
	if _, ok := s.Scan(context.Background(), "   "); ok {
		t.Fatalf("empty code must be a no-op")
	}
}

func TestSessionCheckout_EmptyCartRejected(t *testing.T) {
	client := &stubStoreClient{}
	s := newTestSession(client)

	_, err := s.Checkout(context.Background())
	if !errors.Is(err, validation.ErrEmptyOrder) {
		t.Fatalf("err = %v, want ErrEmptyOrder", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("rejected checkout must not call the API, got %v", client.calls)
	}
}

func TestSessionCheckout_CashRequiresReceivedAmount(t *testing.T) {
	client := &stubStoreClient{}
	s := newTestSession(client)

	if err := s.AddLine("1", "A", 100, 2); err != nil {
		t.Fatalf("AddLine error: %v", err)
	}
	s.SetPaymentType(model.PaymentCash)

	_, err := s.Checkout(context.Background())
	if !errors.Is(err, validation.ErrNoCashReceived) {
		t.Fatalf("err = %v, want ErrNoCashReceived", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("rejected checkout must not call the API, got %v", client.calls)
	}
	if s.Status() != StatusEditing {
		t.Fatalf("status = %q, want editing", s.Status())
	}
}

func TestSessionCheckout_AnonymousCash(t *testing.T) {
	client := &stubStoreClient{receiptNo: 1001}
	s := newTestSession(client)

	_ = s.AddLine("1", "A", 100, 2)
	_ = s.AddLine("2", "B", 450, 1)
	_ = s.UpdateDiscount("2", 50)
	s.SetCashReceived(700)

	res, err := s.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if res.ReceiptNo != 1001 {
		t.Fatalf("receiptNo = %d, want 1001", res.ReceiptNo)
	}

	o := res.Order
	if o.GrandTotal != 600 || o.NetTotal != 600 || o.Change != 100 {
		t.Fatalf("totals = %v/%v/%v, want 600/600/100", o.GrandTotal, o.NetTotal, o.Change)
	}
	if o.Member != nil || o.EarnedPoints != 0 {
		t.Fatalf("anonymous checkout must not involve a member: %+v", o)
	}

	// Успешное оформление очищает кассу.
	if s.Status() != StatusIdle || len(s.Lines()) != 0 {
		t.Fatalf("session must reset after success: status=%q lines=%d", s.Status(), len(s.Lines()))
	}

	for _, call := range client.calls {
		if call == "updatePoints" || call == "createMember" {
			t.Fatalf("anonymous checkout must not touch member API, got %v", client.calls)
		}
	}
}

func TestSessionCheckout_LoyaltyRedeemAndEarn(t *testing.T) {
	client := &stubStoreClient{
		receiptNo: 1002,
		member:    &model.Member{Phone: "0899998888", Name: "Somchai", Points: 80},
	}
	s := newTestSession(client)

	_ = s.AddLine("1", "A", 100, 2)
	_ = s.AddLine("2", "B", 450, 1)
	_ = s.UpdateDiscount("2", 50)

	if err := s.LookupMember(context.Background(), "0899998888"); err != nil {
		t.Fatalf("LookupMember error: %v", err)
	}
	if _, st := s.Member(); st != MemberFound {
		t.Fatalf("member status = %q, want found", st)
	}

	// Запрошено больше, чем есть на балансе: обрезается при вводе.
	s.SetRedeemPoints(100)
	if s.RedeemPoints() != 80 {
		t.Fatalf("redeem = %d, want 80 after clamp", s.RedeemPoints())
	}

	s.SetCashReceived(600)

	res, err := s.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	o := res.Order
	if o.GrandTotal != 600 || o.Discount != 80 || o.NetTotal != 520 {
		t.Fatalf("totals = %v/%v/%v, want 600/80/520", o.GrandTotal, o.Discount, o.NetTotal)
	}
	if o.RedeemedPoints != 80 || o.EarnedPoints != 5 || o.PointsBefore != 80 {
		t.Fatalf("points = %d/%d/%d, want 80/5/80", o.RedeemedPoints, o.EarnedPoints, o.PointsBefore)
	}

	// Баланс после чека: 80 - 80 + 5.
	if client.updatedPhone != "0899998888" || client.updatedPoints != 5 {
		t.Fatalf("points update = %q/%d, want 0899998888/5", client.updatedPhone, client.updatedPoints)
	}
}

func TestSessionCheckout_RegistersNewMemberBeforeOrder(t *testing.T) {
	client := &stubStoreClient{receiptNo: 1003}
	s := newTestSession(client)

	_ = s.AddLine("1", "A", 300, 1)
	s.SetPaymentType(model.PaymentTransfer)

	if err := s.LookupMember(context.Background(), "0811112222"); err != nil {
		t.Fatalf("LookupMember error: %v", err)
	}
	if _, st := s.Member(); st != MemberNew {
		t.Fatalf("member status = %q, want new", st)
	}
	s.SetMemberName("Malee")

	if _, err := s.Checkout(context.Background()); err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	var createIdx, orderIdx int = -1, -1
	for i, call := range client.calls {
		switch call {
		case "createMember":
			createIdx = i
		case "createOrder":
			orderIdx = i
		}
	}
	if createIdx < 0 || orderIdx < 0 || createIdx > orderIdx {
		t.Fatalf("member must be registered before the order, calls: %v", client.calls)
	}
}

func TestSessionCheckout_MemberRegistrationFailureAborts(t *testing.T) {
	client := &stubStoreClient{createMemberErr: errors.New("server unavailable")}
	s := newTestSession(client)

	_ = s.AddLine("1", "A", 300, 1)
	s.SetPaymentType(model.PaymentTransfer)
	_ = s.LookupMember(context.Background(), "0811112222")
	s.SetMemberName("Malee")

	if _, err := s.Checkout(context.Background()); err == nil {
		t.Fatalf("expected registration failure to abort checkout")
	}

	if s.Status() != StatusEditing {
		t.Fatalf("status = %q, want editing", s.Status())
	}
	if len(s.Lines()) != 1 {
		t.Fatalf("cart must be preserved on failure")
	}
	for _, call := range client.calls {
		if call == "createOrder" {
			t.Fatalf("order must not be submitted after failed registration, calls: %v", client.calls)
		}
	}
}

func TestSessionCheckout_SubmitFailurePreservesState(t *testing.T) {
	client := &stubStoreClient{createOrderErr: errors.New("connection reset")}
	s := newTestSession(client)

	_ = s.AddLine("1", "A", 300, 1)
	s.SetCashReceived(500)

	if _, err := s.Checkout(context.Background()); err == nil {
		t.Fatalf("expected submission failure")
	}

	if s.Status() != StatusEditing {
		t.Fatalf("status = %q, want editing", s.Status())
	}
	if len(s.Lines()) != 1 {
		t.Fatalf("cart must be preserved on failure")
	}
}

func TestSessionCheckout_PointsUpdateFailureDoesNotFailCheckout(t *testing.T) {
	client := &stubStoreClient{
		receiptNo:       1004,
		member:          &model.Member{Phone: "0899998888", Name: "Somchai", Points: 10},
		updatePointsErr: errors.New("server unavailable"),
	}
	s := newTestSession(client)

	_ = s.AddLine("1", "A", 300, 1)
	s.SetCashReceived(300)
	_ = s.LookupMember(context.Background(), "0899998888")

	res, err := s.Checkout(context.Background())
	if err != nil {
		t.Fatalf("checkout must succeed despite points update failure, got %v", err)
	}
	if res.ReceiptNo != 1004 {
		t.Fatalf("receiptNo = %d, want 1004", res.ReceiptNo)
	}
	if s.Status() != StatusIdle {
		t.Fatalf("status = %q, want idle", s.Status())
	}
}

func TestSessionRemoveLastLineReturnsToIdle(t *testing.T) {
	s := newTestSession(&stubStoreClient{})

	_ = s.AddLine("1", "A", 100, 1)
	if s.Status() != StatusEditing {
		t.Fatalf("status = %q, want editing", s.Status())
	}

	s.RemoveLine("1")
	if s.Status() != StatusIdle {
		t.Fatalf("status = %q, want idle after removing the last line", s.Status())
	}
}

func TestSessionScan_RemoteLookupDisabled(t *testing.T) {
	client := &stubStoreClient{goods: map[string]*model.Goods{
		"111111": {Barcode: "111111", Name: "Tripod", Price: 900},
	}}
	resolver := NewResolver(client, DefaultCatalog(), nil, nil)
	caps := allCaps()
	caps.RemoteProductLookup = false
	s := NewSession(client, resolver, caps, nil)

	if _, ok := s.Scan(context.Background(), "111111"); ok {
		t.Fatalf("remote-only goods must not resolve with remote lookup disabled")
	}
	for _, call := range client.calls {
		if call == "getGoods" {
			t.Fatalf("remote source must not be queried, calls: %v", client.calls)
		}
	}

	// Локальная таблица продолжает работать.
	if _, ok := s.Scan(context.Background(), "123456"); !ok {
		t.Fatalf("local catalog must still resolve")
	}
}

func TestSessionRedeemWithoutMemberIsZero(t *testing.T) {
	s := newTestSession(&stubStoreClient{})

	s.SetRedeemPoints(50)
	if s.RedeemPoints() != 0 {
		t.Fatalf("redeem without member = %d, want 0", s.RedeemPoints())
	}
	if s.Discount() != 0 {
		t.Fatalf("discount without member = %v, want 0", s.Discount())
	}
}
