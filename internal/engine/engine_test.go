package engine_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/spigotlabs/spigot-api/internal/engine"
	"github.com/spigotlabs/spigot-api/internal/ledger"
	"github.com/spigotlabs/spigot-api/internal/logger"
	"github.com/spigotlabs/spigot-api/internal/metrics"
	"github.com/spigotlabs/spigot-api/internal/mocks"
	"github.com/spigotlabs/spigot-api/internal/store"
)

func init() {
	logger.InitLogger("test")
}

const (
	ownerAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	agentAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	aliceAddr = "0x1111111111111111111111111111111111111111"
	bobAddr   = "0x2222222222222222222222222222222222222222"
	poolAddr  = "0xcccccccccccccccccccccccccccccccccccccccc"
)

type testEngine struct {
	eng    *engine.Engine
	led    *ledger.Memory
	events *store.MemoryEvents
	clock  *clockwork.FakeClock
}

func newTestEngine(t *testing.T, policy engine.Policy, balance int64) *testEngine {
	t.Helper()

	led := ledger.NewMemory(poolAddr)
	led.SetBalance(poolAddr, big.NewInt(balance))
	events := store.NewMemoryEvents(64)
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))

	eng, err := engine.New(engine.Config{
		Owner:       ownerAddr,
		Agent:       agentAddr,
		PoolAddress: poolAddr,
		Policy:      policy,
		Ledger:      led,
		Eligibility: store.NewMemoryEligibility(),
		Events:      events,
		Clock:       clock,
	})
	require.NoError(t, err)

	return &testEngine{eng: eng, led: led, events: events, clock: clock}
}

func callerAmountPolicy() engine.Policy {
	return engine.Policy{
		Mode:       engine.ModeCallerAmount,
		MinPercent: 5,
		MaxPercent: 20,
		Cooldown:   24 * time.Hour,
	}
}

func amountReq(amount int64) engine.ClaimRequest {
	return engine.ClaimRequest{Amount: big.NewInt(amount)}
}

// Mirrors the full sequence: a 1000-unit pool with 5–20% bounds and a one-day
// cooldown pays 150 at t=0, rejects a second claim one second later, and at
// t+1d enforces bounds against the reduced 850-unit balance.
func TestClaimSelf_CallerAmountLifecycle(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	paid, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(150))
	require.NoError(t, err)
	assert.Equal(t, int64(150), paid.Int64())

	balance, err := te.eng.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(850), balance.Int64())

	te.clock.Advance(time.Second)
	_, err = te.eng.ClaimSelf(ctx, aliceAddr, amountReq(50))
	assert.ErrorIs(t, err, engine.ErrCooldownActive)

	te.clock.Advance(24*time.Hour - time.Second)
	_, err = te.eng.ClaimSelf(ctx, aliceAddr, amountReq(1000))
	assert.ErrorIs(t, err, engine.ErrAmountTooLarge)

	paid, err = te.eng.ClaimSelf(ctx, aliceAddr, amountReq(170))
	require.NoError(t, err)
	assert.Equal(t, int64(170), paid.Int64())
}

func TestClaimSelf_CooldownBoundaryInclusive(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	_, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	require.NoError(t, err)

	// One second short of the window.
	te.clock.Advance(24*time.Hour - time.Second)
	_, err = te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrCooldownActive)

	// At exactly lastClaim+cooldown the claim goes through.
	te.clock.Advance(time.Second)
	_, err = te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	assert.NoError(t, err)
}

func TestClaimSelf_CooldownIsPerRecipient(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	_, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	require.NoError(t, err)

	// Bob has never claimed; Alice's stamp must not gate him.
	_, err = te.eng.ClaimSelf(ctx, bobAddr, amountReq(100))
	assert.NoError(t, err)
}

func TestClaimSelf_EmptyPool(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 0)

	_, err := te.eng.ClaimSelf(context.Background(), aliceAddr, amountReq(1))
	assert.ErrorIs(t, err, engine.ErrInsufficientPool)
}

func TestClaimSelf_TransferFailureRollsBackStamp(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	te.led.FailTransfers = true
	_, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrTransferFailed)

	// The failed claim left no stamp behind: the next attempt is not
	// gated by the cooldown.
	remaining, err := te.eng.RemainingCooldown(ctx, aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)

	te.led.FailTransfers = false
	_, err = te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	assert.NoError(t, err)
}

func TestClaimSelf_ReentrantCallbackCannotDoubleSpend(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	// The callback reuses the context the transfer was issued with, as a
	// token contract calling back into the same operation would.
	var nestedErr error
	te.led.TransferHook = func(hookCtx context.Context, _ string, _ *big.Int) {
		_, nestedErr = te.eng.ClaimSelf(hookCtx, aliceAddr, amountReq(100))
	}

	paid, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), paid.Int64())

	// The nested attempt from inside the transfer must have been rejected.
	assert.ErrorIs(t, nestedErr, engine.ErrReentrantCall)

	balance, err := te.eng.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance.Int64())
}

// A caller arriving from another goroutine while a claim is mid-transfer is
// a legitimate concurrent request: it must wait for the mutex and succeed,
// not be mistaken for reentry.
func TestClaimSelf_ConcurrentCallerSerializes(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	te.led.SetBalance(bobAddr, big.NewInt(500))

	depositDone := make(chan error, 1)
	te.led.TransferHook = func(context.Context, string, *big.Int) {
		go func() {
			depositDone <- te.eng.Deposit(context.Background(), bobAddr, big.NewInt(500))
		}()
	}

	_, err := te.eng.ClaimSelf(context.Background(), aliceAddr, amountReq(100))
	require.NoError(t, err)
	require.NoError(t, <-depositDone)

	balance, err := te.eng.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1400), balance.Int64())
}

func TestClaimSelf_TransferFailureCountsRejection(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	te.led.FailTransfers = true

	rejected := metrics.ClaimsRejected.WithLabelValues("transfer_failed")
	before := testutil.ToFloat64(rejected)

	_, err := te.eng.ClaimSelf(context.Background(), aliceAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrTransferFailed)
	assert.Equal(t, before+1, testutil.ToFloat64(rejected))
}

func TestClaimSelf_StampCommittedBeforeTransfer(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	// Even if the reentrancy guard were bypassed, the cooldown is already
	// advanced by the time the transfer runs.
	var observed time.Duration
	te.led.TransferHook = func(context.Context, string, *big.Int) {
		observed, _ = te.eng.RemainingCooldown(ctx, aliceAddr)
	}

	_, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, observed)
}

func TestClaimSelf_DerivedPercentMode(t *testing.T) {
	policy := engine.Policy{Mode: engine.ModeDerivedPercent, Cooldown: time.Hour}
	te := newTestEngine(t, policy, 1000)
	ctx := context.Background()

	paid, err := te.eng.ClaimSelf(ctx, aliceAddr, engine.ClaimRequest{Percent: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(100), paid.Int64())

	_, err = te.eng.ClaimSelf(ctx, bobAddr, engine.ClaimRequest{Percent: 21})
	assert.ErrorIs(t, err, engine.ErrPercentOutOfRange)

	_, err = te.eng.ClaimSelf(ctx, bobAddr, engine.ClaimRequest{Percent: 0})
	assert.ErrorIs(t, err, engine.ErrPercentOutOfRange)
}

func TestClaimSelf_RandomPercentUsesInjectedSource(t *testing.T) {
	led := ledger.NewMemory(poolAddr)
	led.SetBalance(poolAddr, big.NewInt(1000))

	eng, err := engine.New(engine.Config{
		Owner:       ownerAddr,
		PoolAddress: poolAddr,
		Policy:      engine.Policy{Mode: engine.ModeDerivedPercent, Cooldown: time.Hour},
		Ledger:      led,
		Eligibility: store.NewMemoryEligibility(),
		Clock:       clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		RandPercent: func() uint64 { return 7 },
	})
	require.NoError(t, err)

	paid, err := eng.ClaimSelf(context.Background(), aliceAddr, engine.ClaimRequest{Random: true})
	require.NoError(t, err)
	assert.Equal(t, int64(70), paid.Int64())
}

func TestClaimFor_AgentAuthorization(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	// Only the designated agent may claim on behalf of others.
	_, err := te.eng.ClaimFor(ctx, aliceAddr, bobAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrUnauthorized)

	_, err = te.eng.ClaimFor(ctx, ownerAddr, bobAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrUnauthorized)

	paid, err := te.eng.ClaimFor(ctx, agentAddr, bobAddr, amountReq(100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), paid.Int64())

	// The cooldown stamp lands on the recipient, not the agent.
	remaining, err := te.eng.RemainingCooldown(ctx, bobAddr)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, remaining)

	remaining, err = te.eng.RemainingCooldown(ctx, agentAddr)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestDeposit(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()
	te.led.SetBalance(aliceAddr, big.NewInt(500))

	err := te.eng.Deposit(ctx, aliceAddr, big.NewInt(0))
	assert.ErrorIs(t, err, engine.ErrInvalidAmount)

	require.NoError(t, te.eng.Deposit(ctx, aliceAddr, big.NewInt(500)))

	// Funding is visible immediately in the live bounds.
	max, err := te.eng.MaxRequestAmount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), max.Int64())
}

func TestDeposit_PullFailure(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)

	// Alice has no funds to pull.
	err := te.eng.Deposit(context.Background(), aliceAddr, big.NewInt(500))
	assert.ErrorIs(t, err, engine.ErrTransferFailed)
}

func TestEmergencyWithdraw(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	err := te.eng.EmergencyWithdraw(ctx, aliceAddr, big.NewInt(100))
	assert.ErrorIs(t, err, engine.ErrUnauthorized)

	err = te.eng.EmergencyWithdraw(ctx, ownerAddr, big.NewInt(1001))
	assert.ErrorIs(t, err, engine.ErrInsufficientPool)

	// The override ignores percentage bounds entirely.
	require.NoError(t, te.eng.EmergencyWithdraw(ctx, ownerAddr, big.NewInt(1000)))

	balance, err := te.eng.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Int64())
}

func TestAdministrativeIsolation(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	assert.ErrorIs(t, te.eng.SetBounds(ctx, aliceAddr, 1, 10), engine.ErrUnauthorized)
	assert.ErrorIs(t, te.eng.SetCooldown(ctx, aliceAddr, time.Hour), engine.ErrUnauthorized)
	assert.ErrorIs(t, te.eng.SetAuthorizedAgent(ctx, aliceAddr, bobAddr), engine.ErrUnauthorized)
	assert.ErrorIs(t, te.eng.TransferOwnership(ctx, aliceAddr, bobAddr), engine.ErrUnauthorized)

	// Nothing changed.
	pol := te.eng.CurrentPolicy()
	assert.Equal(t, uint64(5), pol.MinPercent)
	assert.Equal(t, uint64(20), pol.MaxPercent)
	assert.Equal(t, 24*time.Hour, pol.Cooldown)
	assert.Equal(t, agentAddr, te.eng.Agent())
	assert.Equal(t, ownerAddr, te.eng.Owner())
}

func TestSetBounds(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	assert.ErrorIs(t, te.eng.SetBounds(ctx, ownerAddr, 20, 5), engine.ErrInvalidPolicy)
	assert.ErrorIs(t, te.eng.SetBounds(ctx, ownerAddr, 5, 51), engine.ErrInvalidPolicy)

	require.NoError(t, te.eng.SetBounds(ctx, ownerAddr, 1, 50))
	pol := te.eng.CurrentPolicy()
	assert.Equal(t, uint64(1), pol.MinPercent)
	assert.Equal(t, uint64(50), pol.MaxPercent)
}

func TestSetBounds_RejectedInDerivedMode(t *testing.T) {
	te := newTestEngine(t, engine.Policy{Mode: engine.ModeDerivedPercent}, 1000)

	err := te.eng.SetBounds(context.Background(), ownerAddr, 1, 10)
	assert.ErrorIs(t, err, engine.ErrInvalidPolicy)
}

func TestSetAuthorizedAgent(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	err := te.eng.SetAuthorizedAgent(ctx, ownerAddr, "0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, engine.ErrInvalidAddress)

	require.NoError(t, te.eng.SetAuthorizedAgent(ctx, ownerAddr, bobAddr))
	assert.Equal(t, bobAddr, te.eng.Agent())

	// The old agent lost the role.
	_, err = te.eng.ClaimFor(ctx, agentAddr, aliceAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestTransferOwnership(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	require.NoError(t, te.eng.TransferOwnership(ctx, ownerAddr, bobAddr))

	// The old owner is now just another caller.
	assert.ErrorIs(t, te.eng.SetCooldown(ctx, ownerAddr, time.Hour), engine.ErrUnauthorized)
	assert.NoError(t, te.eng.SetCooldown(ctx, bobAddr, time.Hour))
}

func TestEventsEmitted(t *testing.T) {
	te := newTestEngine(t, callerAmountPolicy(), 1000)
	ctx := context.Background()

	_, err := te.eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	require.NoError(t, err)
	require.NoError(t, te.eng.SetCooldown(ctx, ownerAddr, time.Hour))

	events := te.events.Recent(0)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, engine.EventCooldownChanged, events[0].Kind)
	assert.Equal(t, "86400", events[0].OldValue)
	assert.Equal(t, "3600", events[0].NewValue)

	assert.Equal(t, engine.EventClaim, events[1].Kind)
	assert.Equal(t, aliceAddr, events[1].Actor)
	assert.Equal(t, aliceAddr, events[1].Recipient)
	assert.Equal(t, "100", events[1].Amount)
	assert.NotEqual(t, "", events[1].ID.String())
}

func TestClaimSelf_LedgerErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedger(ctrl)
	eng, err := engine.New(engine.Config{
		Owner:       ownerAddr,
		PoolAddress: poolAddr,
		Policy:      callerAmountPolicy(),
		Ledger:      mockLedger,
		Eligibility: store.NewMemoryEligibility(),
		Clock:       clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
	})
	require.NoError(t, err)
	ctx := context.Background()

	// Balance read failure surfaces without touching eligibility state.
	mockLedger.EXPECT().BalanceOf(gomock.Any(), poolAddr).Return(nil, errors.New("rpc down"))
	_, err = eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	assert.ErrorContains(t, err, "rpc down")

	// Transfer error maps to ErrTransferFailed and rolls the stamp back.
	mockLedger.EXPECT().BalanceOf(gomock.Any(), poolAddr).Return(big.NewInt(1000), nil)
	mockLedger.EXPECT().Transfer(gomock.Any(), aliceAddr, big.NewInt(100)).Return(false, errors.New("reverted"))
	_, err = eng.ClaimSelf(ctx, aliceAddr, amountReq(100))
	assert.ErrorIs(t, err, engine.ErrTransferFailed)

	remaining, err := eng.RemainingCooldown(ctx, aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestNew_Validation(t *testing.T) {
	led := ledger.NewMemory(poolAddr)
	elig := store.NewMemoryEligibility()
	base := engine.Config{
		Owner:       ownerAddr,
		PoolAddress: poolAddr,
		Policy:      callerAmountPolicy(),
		Ledger:      led,
		Eligibility: elig,
	}

	tests := []struct {
		name    string
		mutate  func(*engine.Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*engine.Config) {}},
		{
			name:    "zero owner",
			mutate:  func(c *engine.Config) { c.Owner = "0x0000000000000000000000000000000000000000" },
			wantErr: engine.ErrInvalidAddress,
		},
		{
			name:    "malformed agent",
			mutate:  func(c *engine.Config) { c.Agent = "not-an-address" },
			wantErr: engine.ErrInvalidAddress,
		},
		{
			name:    "bad policy",
			mutate:  func(c *engine.Config) { c.Policy.MaxPercent = 90 },
			wantErr: engine.ErrInvalidPolicy,
		},
		{
			name:    "missing ledger",
			mutate:  func(c *engine.Config) { c.Ledger = nil },
			wantErr: engine.ErrInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := engine.New(cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
