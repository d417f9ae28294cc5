package collector

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"golang.org/x/time/rate"
)

var totalSupplySelector = gethcrypto.Keccak256([]byte("totalSupply()"))[:4]

// ContractCaller is the subset of the Ethereum RPC used by EVMReserve.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReserveTokens are the ERC-20 contracts whose supplies make up a reserve.
type ReserveTokens struct {
	LiquidityToken    common.Address // aToken
	VariableDebtToken common.Address
	StableDebtToken   common.Address
}

// EVMReserve reads reserve totals from the token contracts' totalSupply().
type EVMReserve struct {
	client  ContractCaller
	tokens  ReserveTokens
	limiter *rate.Limiter
}

// DialEVMReserve connects to an Ethereum node for the provided endpoint.
func DialEVMReserve(endpoint string, tokens ReserveTokens, requestsPerSecond float64) (*EVMReserve, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("evm endpoint required")
	}
	client, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", trimmed, err)
	}
	return NewEVMReserve(client, tokens, requestsPerSecond), nil
}

// NewEVMReserve constructs a reserve view from a contract caller.
func NewEVMReserve(client ContractCaller, tokens ReserveTokens, requestsPerSecond float64) *EVMReserve {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &EVMReserve{client: client, tokens: tokens, limiter: limiter}
}

func (r *EVMReserve) Name() string { return "evm" }

func (r *EVMReserve) TotalSupplyOfLiquidityToken(ctx context.Context) (*uint256.Int, error) {
	return r.totalSupply(ctx, r.tokens.LiquidityToken)
}

func (r *EVMReserve) TotalVariableDebt(ctx context.Context) (*uint256.Int, error) {
	return r.totalSupply(ctx, r.tokens.VariableDebtToken)
}

func (r *EVMReserve) TotalStableDebt(ctx context.Context) (*uint256.Int, error) {
	return r.totalSupply(ctx, r.tokens.StableDebtToken)
}

func (r *EVMReserve) totalSupply(ctx context.Context, token common.Address) (*uint256.Int, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("evm reserve not initialised")
	}
	if (token == common.Address{}) {
		return nil, fmt.Errorf("token address required")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: totalSupplySelector}, nil)
	if err != nil {
		return nil, fmt.Errorf("totalSupply %s: %w", token.Hex(), err)
	}
	if len(out) != 32 {
		return nil, fmt.Errorf("totalSupply %s: unexpected return length %d", token.Hex(), len(out))
	}
	return new(uint256.Int).SetBytes32(out), nil
}
