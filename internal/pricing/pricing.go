// Package pricing содержит расчёт стоимости заказа.
package pricing

import "github.com/shopspring/decimal"

// DefaultTaxRate — ставка НДС по умолчанию.
const DefaultTaxRate = "0.18"

var hundred = decimal.NewFromInt(100)

// Quote — результат расчёта стоимости в курушах.
type Quote struct {
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}

// Calculator выполняет расчёт стоимости заказа с фиксированной ставкой налога.
// Вся арифметика ведётся в десятичных числах с фиксированной точкой,
// округление — до 2 знаков на каждом производном значении.
type Calculator struct {
	taxRate decimal.Decimal
}

// NewCalculator создаёт калькулятор с указанной ставкой налога,
// например "0.18" для 18%.
func NewCalculator(taxRate string) (*Calculator, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return nil, err
	}
	return &Calculator{taxRate: rate}, nil
}

// Price рассчитывает подытог, налог и итог для указанной цены за единицу
// (в курушах) и количества.
func (c *Calculator) Price(unitPriceCents int64, quantity int) Quote {
	unit := decimal.NewFromInt(unitPriceCents).Div(hundred)

	subtotal := unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	tax := subtotal.Mul(c.taxRate).Round(2)
	total := subtotal.Add(tax).Round(2)

	return Quote{
		SubtotalCents: subtotal.Mul(hundred).IntPart(),
		TaxCents:      tax.Mul(hundred).IntPart(),
		TotalCents:    total.Mul(hundred).IntPart(),
	}
}
