// Package ledger exposes the external asset ledger the engine custodies its
// pool on. The engine only ever observes balances and moves funds through
// this interface; it never keeps its own balance accounting.
package ledger

import (
	"context"
	"math/big"
)

// Ledger is the consumed transfer capability. Transfer moves funds out of
// the pool account, TransferFrom pulls caller-authorized funds into it.
// A false return without an error still means the transfer did not happen;
// callers must treat both signals as failure.
type Ledger interface {
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
	Transfer(ctx context.Context, to string, amount *big.Int) (bool, error)
	TransferFrom(ctx context.Context, from, to string, amount *big.Int) (bool, error)
}
