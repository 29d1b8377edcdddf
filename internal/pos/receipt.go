package pos

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
)

// ShopInfo описывает реквизиты магазина для шапки чека.
type ShopInfo struct {
	Name    string
	Address string
}

const receiptDivider = "--------------------------------"

// Composer формирует печатную форму чека для 80-миллиметровой ленты.
// Сама печать выполняется платформой и в обязанности Composer не входит.
type Composer struct {
	shop    ShopInfo
	printer *message.Printer
}

// NewComposer создаёт Composer с тайской локалью для денежных сумм.
func NewComposer(shop ShopInfo) *Composer {
	return &Composer{
		shop:    shop,
		printer: message.NewPrinter(language.Thai),
	}
}

func (c *Composer) baht(v float64) string {
	return c.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Render возвращает текст чека для завершённой транзакции: шапка
// магазина, номер чека, позиции, суммы, способ оплаты и сдача.
// Строка скидки печатается только при ненулевом списании баллов.
func (c *Composer) Render(o *model.Order, receiptNo int64) string {
	var b strings.Builder

	b.WriteString(c.shop.Name + "\n")
	if c.shop.Address != "" {
		b.WriteString(c.shop.Address + "\n")
	}
	b.WriteString(receiptDivider + "\n")
	b.WriteString("ใบเสร็จรับเงิน\n")
	fmt.Fprintf(&b, "No: %d\n", receiptNo)
	b.WriteString(o.Date.Format("02/01/2006 15:04:05") + "\n")
	b.WriteString(receiptDivider + "\n")

	for _, l := range o.Lines {
		b.WriteString(l.Name + "\n")
		fmt.Fprintf(&b, "  %d x %s", l.Quantity, c.baht(l.Price))
		if l.Discount != 0 {
			fmt.Fprintf(&b, " - %s", c.baht(l.Discount))
		}
		fmt.Fprintf(&b, " = %s THB\n", c.baht(l.Total()))
	}

	b.WriteString(receiptDivider + "\n")
	fmt.Fprintf(&b, "ยอดรวม: %s THB\n", c.baht(o.GrandTotal))
	if o.Discount != 0 {
		fmt.Fprintf(&b, "ส่วนลดแต้ม: -%s THB\n", c.baht(o.Discount))
		fmt.Fprintf(&b, "ยอดสุทธิ: %s THB\n", c.baht(o.NetTotal))
	}

	if o.PaymentType == model.PaymentCash {
		b.WriteString("วิธีชำระ: เงินสด\n")
		fmt.Fprintf(&b, "จำนวนเงินที่รับ: %s THB\n", c.baht(o.CashReceived))
		fmt.Fprintf(&b, "เงินทอน: %s THB\n", c.baht(o.Change))
	} else {
		b.WriteString("วิธีชำระ: โอน\n")
	}

	if o.Member != nil && o.Member.Name != "" {
		fmt.Fprintf(&b, "สมาชิก: %s\n", o.Member.Name)
		if o.EarnedPoints > 0 {
			fmt.Fprintf(&b, "ได้รับแต้ม: %d\n", o.EarnedPoints)
		}
	}

	b.WriteString(receiptDivider + "\n")
	b.WriteString("ขอบคุณที่อุดหนุน\n")

	return b.String()
}
