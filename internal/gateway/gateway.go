// Package gateway содержит имитацию внешнего платёжного шлюза.
package gateway

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
)

// ErrCodeInsufficientFunds — код отказа шлюза при нехватке средств.
const ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"

const gatewayName = "FakeGateway"

// Decider — стратегия исхода платежа. Подменяется в тестах
// детерминированной реализацией.
type Decider interface {
	Approve() bool
}

// RandomDecider одобряет платёж с заданной вероятностью, используя
// криптографический источник случайности.
type RandomDecider struct {
	SuccessPercent int
}

// Approve возвращает true с вероятностью SuccessPercent из 100.
func (d RandomDecider) Approve() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		// Без источника случайности платежи не одобряем.
		return false
	}
	return n.Int64() < int64(d.SuccessPercent)
}

// Result описывает ответ платёжного шлюза на попытку списания.
type Result struct {
	Success       bool      `json:"success"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Message       string    `json:"message"`
	Gateway       string    `json:"gateway"`
	Method        string    `json:"payment_method,omitempty"`
	AmountCents   int64     `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Payload сериализует ответ шлюза для хранения в записи об оплате.
func (r Result) Payload() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

// Gateway имитирует внешнего платёжного провайдера. Каждый вызов
// независим, идемпотентность — забота вызывающей стороны.
type Gateway struct {
	decider Decider
}

// New создаёт шлюз с указанной стратегией исхода.
func New(decider Decider) *Gateway {
	return &Gateway{decider: decider}
}

// Charge выполняет имитацию списания по заказу.
func (g *Gateway) Charge(order *model.Order, method string) Result {
	now := time.Now()

	if !g.decider.Approve() {
		return Result{
			Success:   false,
			ErrorCode: ErrCodeInsufficientFunds,
			Message:   "Payment declined - Insufficient funds",
			Gateway:   gatewayName,
			Timestamp: now,
		}
	}

	txID := fmt.Sprintf("FKG-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")))

	return Result{
		Success:       true,
		TransactionID: txID,
		Message:       "Payment processed successfully",
		Gateway:       gatewayName,
		Method:        method,
		AmountCents:   order.TotalCents,
		Currency:      "TRY",
		Timestamp:     now,
	}
}
