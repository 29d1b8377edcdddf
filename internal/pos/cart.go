// Package pos реализует кассовый движок терминала: корзину с расчётом
// сумм, подбор товара по штрихкоду, оформление заказа и печатную форму чека.
package pos

import (
	"errors"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
	"github.com/Jar-Mar/tukjaishop-pos/internal/validation"
)

// ErrLineNotFound возвращается при изменении отсутствующей позиции чека.
var (
	ErrLineNotFound = errors.New("cart line not found")
	// ErrNegativeDiscount возвращается при попытке указать отрицательную скидку.
	ErrNegativeDiscount = errors.New("line discount must not be negative")
)

// Cart — снимок позиций текущей транзакции. Операции не изменяют
// получатель, а возвращают новый снимок; неудачная операция возвращает
// исходный снимок без изменений.
type Cart struct {
	lines []model.OrderLine
}

func (c Cart) clone() []model.OrderLine {
	lines := make([]model.OrderLine, len(c.lines))
	copy(lines, c.lines)
	return lines
}

func (c Cart) find(id string) int {
	for i, l := range c.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// AddLine добавляет позицию в чек. Пустой идентификатор заменяется
// служебным model.ManualLineID, нулевое количество — единицей.
// Повторное добавление товара с тем же идентификатором увеличивает
// количество существующей позиции на 1; присланные имя и цена при этом
// игнорируются — позиция сохраняет исходные данные.
func (c Cart) AddLine(id, name string, price float64, quantity int) (Cart, error) {
	id = validation.NormalizeBarcode(id)
	if id == "" {
		id = model.ManualLineID
	}
	if quantity == 0 {
		quantity = 1
	}

	if err := validation.ValidateLine(name, quantity, price); err != nil {
		return c, err
	}

	lines := c.clone()
	if i := c.find(id); i >= 0 {
		lines[i].Quantity++
		return Cart{lines: lines}, nil
	}

	lines = append(lines, model.OrderLine{
		ID:       id,
		Name:     name,
		Quantity: quantity,
		Price:    price,
	})
	return Cart{lines: lines}, nil
}

// UpdateQuantity устанавливает количество для позиции чека.
func (c Cart) UpdateQuantity(id string, quantity int) (Cart, error) {
	if quantity < 1 {
		return c, validation.ErrBadQuantity
	}

	i := c.find(id)
	if i < 0 {
		return c, ErrLineNotFound
	}

	lines := c.clone()
	lines[i].Quantity = quantity
	return Cart{lines: lines}, nil
}

// UpdateDiscount устанавливает скидку в батах для позиции чека.
// Скидка вычитается из суммы позиции целиком и не зависит от количества.
func (c Cart) UpdateDiscount(id string, amount float64) (Cart, error) {
	if amount < 0 {
		return c, ErrNegativeDiscount
	}

	i := c.find(id)
	if i < 0 {
		return c, ErrLineNotFound
	}

	lines := c.clone()
	lines[i].Discount = amount
	return Cart{lines: lines}, nil
}

// RemoveLine удаляет позицию из чека. Удаление отсутствующей позиции
// не считается ошибкой.
func (c Cart) RemoveLine(id string) Cart {
	i := c.find(id)
	if i < 0 {
		return c
	}

	lines := c.clone()
	return Cart{lines: append(lines[:i], lines[i+1:]...)}
}

// Lines возвращает копию позиций чека в порядке добавления.
func (c Cart) Lines() []model.OrderLine {
	return c.clone()
}

// Len возвращает число позиций в чеке.
func (c Cart) Len() int {
	return len(c.lines)
}

// Empty сообщает, пуст ли чек.
func (c Cart) Empty() bool {
	return len(c.lines) == 0
}

// GrandTotal возвращает сумму чека до списания баллов.
// Для пустого чека — ноль.
func (c Cart) GrandTotal() float64 {
	var total float64
	for _, l := range c.lines {
		total += l.Total()
	}
	return total
}
