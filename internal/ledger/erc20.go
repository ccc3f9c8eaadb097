package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/spigotlabs/spigot-api/internal/logger"
)

// Minimal ERC-20 surface: the engine only reads balances and moves funds.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// ERC20 is a Ledger backed by an ERC-20 token contract over JSON-RPC.
// Transfers are submitted with the configured transactor and waited to a
// mined receipt; a reverted receipt is reported as an unsuccessful transfer,
// not an error, mirroring the boolean failure signal of the token standard.
type ERC20 struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	token    common.Address
	opts     *bind.TransactOpts
	log      *zap.Logger
}

// NewERC20 dials the RPC endpoint and binds the token contract.
func NewERC20(rpcURL, tokenAddress string, opts *bind.TransactOpts) (*ERC20, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	token := common.HexToAddress(tokenAddress)
	return &ERC20{
		client:   client,
		contract: bind.NewBoundContract(token, parsed, client, client, client),
		token:    token,
		opts:     opts,
		log:      logger.Log,
	}, nil
}

// BalanceOf reads the token balance of an address.
func (l *ERC20) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	var out []interface{}
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned unexpected type %T", out[0])
	}
	return balance, nil
}

// Transfer submits a token transfer out of the transactor's account and
// waits for it to be mined.
func (l *ERC20) Transfer(ctx context.Context, to string, amount *big.Int) (bool, error) {
	return l.transact(ctx, "transfer", common.HexToAddress(to), amount)
}

// TransferFrom submits a pull transfer using the token's allowance mechanism
// and waits for it to be mined.
func (l *ERC20) TransferFrom(ctx context.Context, from, to string, amount *big.Int) (bool, error) {
	return l.transact(ctx, "transferFrom", common.HexToAddress(from), common.HexToAddress(to), amount)
}

func (l *ERC20) transact(ctx context.Context, method string, args ...interface{}) (bool, error) {
	opts := *l.opts
	opts.Context = ctx

	tx, err := l.contract.Transact(&opts, method, args...)
	if err != nil {
		return false, fmt.Errorf("%s submission failed: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return false, fmt.Errorf("%s wait failed: %w", method, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		l.log.Warn("Token transaction reverted",
			zap.String("method", method),
			zap.String("tx_hash", tx.Hash().Hex()),
			zap.String("token", l.token.Hex()),
		)
		return false, nil
	}

	return true, nil
}

// Close releases the RPC connection.
func (l *ERC20) Close() {
	l.client.Close()
}
