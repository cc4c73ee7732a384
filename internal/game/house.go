package game

import (
	"fmt"

	"plinko/internal/events"
	"plinko/internal/ledger"
	"plinko/internal/money"
)

func withdrawHouse(c *callCtx, cfg Config, req WithdrawHouse) (ledger.Stats, error) {
	if c.call.Caller != cfg.Admin {
		return ledger.Stats{}, ErrUnauthorized
	}
	stats, err := c.st.stats()
	if err != nil {
		return ledger.Stats{}, err
	}
	if err := stats.Withdraw(req.Amount); err != nil {
		return ledger.Stats{}, err
	}
	if err := c.st.save(keyStats, stats); err != nil {
		return ledger.Stats{}, err
	}

	c.out.Pay(events.Transfer{Recipient: cfg.Admin, Denom: cfg.TokenDenom, Amount: req.Amount})
	c.out.Emit(c.event("withdraw_house").
		With("amount", req.Amount.String()).
		With("recipient", cfg.Admin))
	return stats, nil
}

func fundHouse(c *callCtx, cfg Config) (ledger.Stats, error) {
	if c.call.Caller != cfg.Funder {
		return ledger.Stats{}, ErrUnauthorized
	}
	amount, err := paid(c.call.Funds, cfg.TokenDenom)
	if err != nil {
		return ledger.Stats{}, err
	}
	stats, err := c.st.stats()
	if err != nil {
		return ledger.Stats{}, err
	}
	if err := stats.Fund(amount); err != nil {
		return ledger.Stats{}, err
	}
	if err := c.st.save(keyStats, stats); err != nil {
		return ledger.Stats{}, err
	}

	c.out.Emit(c.event("fund_house").With("amount", amount.String()))
	return stats, nil
}

// syncBalance only ever raises the house balance. A reported balance at or
// below the booked one is a no-op that is still reported.
func syncBalance(c *callCtx, cfg Config, req SyncBalance) (SyncResponse, error) {
	if c.call.Caller != cfg.Admin {
		return SyncResponse{}, ErrUnauthorized
	}
	stats, err := c.st.stats()
	if err != nil {
		return SyncResponse{}, err
	}

	recovered := stats.Sync(req.ReportedBalance)
	ev := c.event("sync_balance")
	if recovered.IsZero() {
		c.out.Emit(ev.
			With("funds_recovered", money.Zero().String()).
			With("message", "balance already in sync"))
		return SyncResponse{FundsRecovered: recovered, NewHouseBalance: stats.HouseBalance}, nil
	}

	if err := c.st.save(keyStats, stats); err != nil {
		return SyncResponse{}, fmt.Errorf("sync balance: %w", err)
	}
	c.out.Emit(ev.
		With("funds_recovered", recovered.String()).
		With("new_house_balance", stats.HouseBalance.String()))
	return SyncResponse{FundsRecovered: recovered, NewHouseBalance: stats.HouseBalance}, nil
}
