package gateway

import (
	"context"
	"sync"

	"github.com/novunt/client-core/x/backend"
	"github.com/novunt/client-core/x/bonus"
)

type fakeBackend struct {
	mu sync.Mutex

	snapshot bonus.Snapshot
	bonusErr error
	fetches  int

	dayStart backend.DayStart
	dayErr   error
	dayCalls int

	withdrawErr error
	withdrawals []submittedWithdrawal
}

type submittedWithdrawal struct {
	token string
	key   string
	req   backend.WithdrawalRequest
}

func (f *fakeBackend) BonusFetcher(token string) bonus.Fetcher {
	return bonus.FetcherFunc(func(context.Context) (bonus.Snapshot, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fetches++
		return f.snapshot, f.bonusErr
	})
}

func (f *fakeBackend) FetchDayStart(context.Context) (backend.DayStart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dayCalls++
	return f.dayStart, f.dayErr
}

func (f *fakeBackend) SubmitWithdrawal(
	_ context.Context,
	token, key string,
	req backend.WithdrawalRequest,
) (backend.WithdrawalReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals = append(f.withdrawals, submittedWithdrawal{token: token, key: key, req: req})
	if f.withdrawErr != nil {
		return backend.WithdrawalReceipt{}, f.withdrawErr
	}
	return backend.WithdrawalReceipt{ID: "wd-1", Status: "pending", Amount: req.Amount}, nil
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) withdrawCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.withdrawals)
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) dayStartCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dayCalls
}
