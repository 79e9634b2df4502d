package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/ledger"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/middleware"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// AccountService is what AccountHandler needs from the ledger.
type AccountService interface {
	TransferWithKey(ctx context.Context, key string, from, to models.AccountID, amount decimal.Decimal) (ledger.TransferResult, error)
	GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error)
}

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

type AccountHandler struct {
	ledger AccountService
	logger *zap.Logger
}

// TransferRequest carries amount raw so both 12.5 and "12.50" are accepted
// without a float round trip.
type TransferRequest struct {
	To     string          `json:"to"`
	Amount json.RawMessage `json:"amount"`
}

var kindMessages = map[ledger.Kind]string{
	ledger.KindInsufficientFunds:  "Insufficient balance",
	ledger.KindAccountNotFound:    "Invalid account",
	ledger.KindInvalidAmount:      "Invalid amount",
	ledger.KindInvalidDestination: "Cannot transfer to your own account",
	ledger.KindStoreUnavailable:   "Service temporarily unavailable",
}

func NewAccountHandler(svc AccountService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{ledger: svc, logger: logger}
}

// money renders a balance as a JSON number with exactly two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(ledger.MoneyScale))
}

func (h *AccountHandler) Balance(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	balance, err := h.ledger.GetBalance(c.Request.Context(), models.AccountID(userID))
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
			return
		}
		h.logger.Warn("balance read failed", zap.String("account_id", userID), zap.Error(err))
		middleware.RespondWithError(c, http.StatusServiceUnavailable, kindMessages[ledger.KindStoreUnavailable])
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": money(balance)})
}

func (h *AccountHandler) Transfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid Idempotency-Key")
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.To == "" {
		respondKind(c, ledger.KindAccountNotFound)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondKind(c, ledger.KindInvalidAmount)
		return
	}

	result, _ := h.ledger.TransferWithKey(c.Request.Context(), key, models.AccountID(userID), models.AccountID(req.To), amount)
	if result.Status != ledger.KindOK {
		respondKind(c, result.Status)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     ledger.KindOK,
		"msg":        "Transfer successful",
		"transferId": result.TransferID,
		"balance":    money(result.FromBalance),
	})
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return decimal.Zero, ledger.ErrInvalidAmount
		}
		text = unquoted
	}
	return ledger.ParseAmount(text)
}

func respondKind(c *gin.Context, kind ledger.Kind) {
	status := http.StatusBadRequest
	if kind == ledger.KindStoreUnavailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status": kind,
		"msg":    kindMessages[kind],
	})
}
