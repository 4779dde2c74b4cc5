package tokenmeta

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Fetcher reads ERC-20 metadata from the chain; every call may fail on its own
type Fetcher interface {
	Symbol(ctx context.Context, token string) (string, error)
	Name(ctx context.Context, token string) (string, error)
	Decimals(ctx context.Context, token string) (int64, error)
	TotalSupply(ctx context.Context, token string) (*big.Int, error)
}

// ContractCaller is satisfied by *ethclient.Client
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var (
	erc20ABI = mustParseABI(erc20ABIJSON)

	ErrEmptyResult = errors.New("empty call result")
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

type ERC20Fetcher struct {
	caller  ContractCaller
	timeout time.Duration
}

func NewERC20Fetcher(caller ContractCaller, timeout time.Duration) (*ERC20Fetcher, error) {
	if caller == nil {
		return nil, errors.New("contract caller is required to the erc20 fetcher")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &ERC20Fetcher{caller: caller, timeout: timeout}, nil
}

// DialERC20Fetcher connects to an RPC endpoint; the returned close func releases it
func DialERC20Fetcher(ctx context.Context, rpcURL string, timeout time.Duration) (*ERC20Fetcher, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rpc: %w", err)
	}

	f, err := NewERC20Fetcher(client, timeout)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return f, client.Close, nil
}

func (f *ERC20Fetcher) call(ctx context.Context, token, method string) ([]byte, error) {
	data, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(token)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := f.caller.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s() on %s: %w", method, token, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s() on %s: %w", method, token, ErrEmptyResult)
	}
	return out, nil
}

// Symbol tries the string accessor, then the bytes32 variant
func (f *ERC20Fetcher) Symbol(ctx context.Context, token string) (string, error) {
	return f.text(ctx, token, "symbol")
}

func (f *ERC20Fetcher) Name(ctx context.Context, token string) (string, error) {
	return f.text(ctx, token, "name")
}

func (f *ERC20Fetcher) text(ctx context.Context, token, method string) (string, error) {
	out, err := f.call(ctx, token, method)
	if err != nil {
		return "", err
	}

	var value string
	if err = erc20ABI.UnpackIntoInterface(&value, method, out); err == nil && value != "" {
		return value, nil
	}

	if s, ok := decodeBytes32(out); ok {
		return s, nil
	}
	return "", fmt.Errorf("%s() on %s: undecodable result", method, token)
}

func (f *ERC20Fetcher) Decimals(ctx context.Context, token string) (int64, error) {
	out, err := f.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}

	var value uint8
	if err = erc20ABI.UnpackIntoInterface(&value, "decimals", out); err != nil {
		return 0, fmt.Errorf("decimals() on %s: %w", token, err)
	}
	return int64(value), nil
}

func (f *ERC20Fetcher) TotalSupply(ctx context.Context, token string) (*big.Int, error) {
	out, err := f.call(ctx, token, "totalSupply")
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if err = erc20ABI.UnpackIntoInterface(&value, "totalSupply", out); err != nil {
		return nil, fmt.Errorf("totalSupply() on %s: %w", token, err)
	}
	return value, nil
}

// decodeBytes32 keeps printable ASCII up to the first NUL of the first word.
// An all-zero word or a 32-char result is rejected.
func decodeBytes32(out []byte) (string, bool) {
	if len(out) < 32 {
		return "", false
	}

	var sb strings.Builder
	for _, c := range out[:32] {
		if c == 0 {
			break
		}
		if c >= 32 && c <= 126 {
			sb.WriteByte(c)
		}
	}

	s := sb.String()
	if len(s) == 0 || len(s) >= 32 {
		return "", false
	}
	return s, true
}
