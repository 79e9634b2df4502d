// Package provisioning creates the ledger account that belongs to a new user.
package provisioning

import (
	"context"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// SeedFunc returns a value in [0, 1) used to derive the opening balance.
type SeedFunc func() float64

type Provisioner struct {
	store  interfaces.AccountStore
	seed   SeedFunc
	logger *zap.Logger
}

func NewProvisioner(store interfaces.AccountStore, seed SeedFunc, logger *zap.Logger) *Provisioner {
	if seed == nil {
		seed = rand.Float64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{store: store, seed: seed, logger: logger}
}

// OpeningBalance maps a seed in [0, 1) onto [1, 10001), rounded to cents.
func OpeningBalance(seed float64) decimal.Decimal {
	return decimal.NewFromFloat(1 + seed*10000).RoundDown(2)
}

// CreateAccount opens the account owned by ownerUserID. An owner has at
// most one account; a second call fails with models.ErrAccountExists.
func (p *Provisioner) CreateAccount(ctx context.Context, ownerUserID string) (models.Account, error) {
	id := models.AccountID(ownerUserID)
	acc, err := p.store.CreateAccount(ctx, id, OpeningBalance(p.seed()))
	if err != nil {
		p.logger.Warn("account provisioning failed", zap.String("account_id", ownerUserID), zap.Error(err))
		return models.Account{}, err
	}
	p.logger.Info("account provisioned",
		zap.String("account_id", ownerUserID),
		zap.String("balance", acc.Balance.String()))
	return acc, nil
}
