package store

import (
	"context"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/pricing"
)

type WalletAPI interface {
	Balance(ctx context.Context) (*domain.Balance, error)
	DepositAddress(ctx context.Context) (string, error)
	LedgerHistory(ctx context.Context) ([]domain.LedgerEntry, error)
	Withdraw(ctx context.Context, req apiclient.WithdrawRequest) (*apiclient.Withdrawal, error)
	SimulateDeposit(ctx context.Context, amount int64) error
}

type WalletStore struct {
	Status
	api WalletAPI

	Balance        domain.Balance
	DepositAddress string
	History        []domain.LedgerEntry
}

func NewWalletStore(api WalletAPI) *WalletStore {
	return &WalletStore{api: api}
}

// FetchBalance shows a zero balance when the wallet service fails.
func (s *WalletStore) FetchBalance(ctx context.Context) error {
	s.begin()
	bal, err := s.api.Balance(ctx)
	if err != nil {
		s.Balance = domain.Balance{}
		return s.finish(err)
	}
	s.Balance = *bal
	return s.finish(nil)
}

func (s *WalletStore) FetchDepositAddress(ctx context.Context) error {
	addr, err := s.api.DepositAddress(ctx)
	if err != nil {
		s.DepositAddress = ""
		return err
	}
	s.DepositAddress = addr
	return nil
}

func (s *WalletStore) FetchHistory(ctx context.Context) error {
	history, err := s.api.LedgerHistory(ctx)
	if err != nil {
		s.History = nil
		return err
	}
	s.History = history
	return nil
}

// Refresh loads everything the wallet tab shows.
func (s *WalletStore) Refresh(ctx context.Context) error {
	err := s.FetchBalance(ctx)
	_ = s.FetchDepositAddress(ctx)
	_ = s.FetchHistory(ctx)
	return err
}

// Withdraw requests a debit to address and reloads balance and history.
func (s *WalletStore) Withdraw(ctx context.Context, amountInput, address string) error {
	amount, err := pricing.ParseDoge(amountInput)
	if err != nil || amount <= 0 {
		s.Err = "Enter a whole, positive DOGE amount"
		return domain.ErrInvalidAmount
	}
	address = strings.TrimSpace(address)
	if address == "" {
		s.Err = "Enter a destination address"
		return domain.ErrInvalidAmount
	}

	s.begin()
	if _, err := s.api.Withdraw(ctx, apiclient.WithdrawRequest{Amount: amount, Address: address}); err != nil {
		return s.finish(err)
	}
	s.finish(nil)
	_ = s.FetchBalance(ctx)
	_ = s.FetchHistory(ctx)
	return nil
}

// SimulateDeposit credits the wallet on development backends.
func (s *WalletStore) SimulateDeposit(ctx context.Context, amountInput string) error {
	amount, err := pricing.ParseDoge(amountInput)
	if err != nil || amount <= 0 {
		s.Err = "Enter a whole, positive DOGE amount"
		return domain.ErrInvalidAmount
	}
	s.begin()
	if err := s.api.SimulateDeposit(ctx, amount); err != nil {
		return s.finish(err)
	}
	s.finish(nil)
	_ = s.FetchBalance(ctx)
	_ = s.FetchHistory(ctx)
	return nil
}
