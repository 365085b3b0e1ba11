// Package validation содержит проверки входных данных API.
package validation

import "encoding/hex"

// tokenIDLength — длина hex-идентификатора токена (40 байт в hex-кодировке).
const tokenIDLength = 80

var paymentMethods = map[string]struct{}{
	"credit_card":   {},
	"debit_card":    {},
	"bank_transfer": {},
}

// IsValidQuantity проверяет, что количество товара положительное.
func IsValidQuantity(quantity int) bool {
	return quantity > 0
}

// IsValidPaymentMethod проверяет, что способ оплаты известен шлюзу.
func IsValidPaymentMethod(method string) bool {
	_, ok := paymentMethods[method]
	return ok
}

// IsValidTokenID проверяет формат идентификатора токена обновления.
func IsValidTokenID(id string) bool {
	if len(id) != tokenIDLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
