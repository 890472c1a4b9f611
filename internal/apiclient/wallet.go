package apiclient

import (
	"context"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

type WithdrawRequest struct {
	Amount  int64  `json:"amount"`
	Address string `json:"address"`
}

type Withdrawal struct {
	ID      domain.ID   `json:"id"`
	Amount  domain.Doge `json:"amount"`
	Address string      `json:"address"`
	Status  string      `json:"status"`
}

func (c *Client) Balance(ctx context.Context) (*domain.Balance, error) {
	var out domain.Balance
	if err := c.get(ctx, ServiceWallet, "balance", "/wallet/wallet/balance/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DepositAddress(ctx context.Context) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.get(ctx, ServiceWallet, "deposit_address", "/wallet/wallet/deposit-address/", nil, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func (c *Client) LedgerHistory(ctx context.Context) ([]domain.LedgerEntry, error) {
	var out listEnvelope[domain.LedgerEntry]
	if err := c.get(ctx, ServiceWallet, "history", "/wallet/wallet/history/", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Withdraw(ctx context.Context, req WithdrawRequest) (*Withdrawal, error) {
	var out Withdrawal
	if err := c.post(ctx, ServiceWallet, "withdraw", "/wallet/wallet/withdraw/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SimulateDeposit credits the wallet on development backends.
func (c *Client) SimulateDeposit(ctx context.Context, amount int64) error {
	body := map[string]int64{"amount": amount}
	return c.post(ctx, ServiceWallet, "simulate_deposit", "/wallet/wallet/simulate-deposit/", body, nil)
}
