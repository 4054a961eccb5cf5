// Package evm implements the ledger client against an EVM role-registry
// contract exposing the OpenZeppelin AccessControl surface plus the
// marketplace role-identifier getters.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

const defaultConfirmTimeout = 90 * time.Second

// registryABI covers the contract surface the synchronizer needs: the role
// constant getters, the membership view, and the two mutating calls.
const registryABI = `[
	{"inputs":[],"name":"DEFAULT_ADMIN_ROLE","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"PLATFORM_ADMIN_ROLE","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"FUNDS_MANAGER_ROLE","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"AUTHOR_ROLE","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"role","type":"bytes32"},{"internalType":"address","name":"account","type":"address"}],"name":"hasRole","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"role","type":"bytes32"},{"internalType":"address","name":"account","type":"address"}],"name":"grantRole","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"role","type":"bytes32"},{"internalType":"address","name":"account","type":"address"}],"name":"revokeRole","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Config captures the settings for connecting to the role registry.
type Config struct {
	RPCURL          string
	ContractAddress string
	// AdminPrivateKey is the hex-encoded key of the designated administrator
	// account that signs grant and revoke transactions.
	AdminPrivateKey string
	ChainID         int64
	// ConfirmTimeout bounds the wait for a transaction receipt so a hanging
	// confirmation cannot block a request indefinitely.
	ConfirmTimeout time.Duration
}

// Client talks to the role registry over JSON-RPC. Satisfies
// ports.LedgerClient.
type Client struct {
	eth            *ethclient.Client
	contract       common.Address
	abi            abi.ABI
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	log            zerolog.Logger
}

// Dial connects to the RPC endpoint and verifies the chain ID matches the
// configured one.
func Dial(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger dial: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("ledger chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("ledger chain id mismatch: expected %d, got %s", cfg.ChainID, chainID)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.AdminPrivateKey, "0x"))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse admin key: %w", err)
	}

	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}

	return &Client{
		eth:            eth,
		contract:       common.HexToAddress(cfg.ContractAddress),
		abi:            parsed,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		confirmTimeout: timeout,
		log:            log,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Ping verifies RPC connectivity, for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.eth.ChainID(ctx); err != nil {
		return fmt.Errorf("ledger ping: %w", err)
	}
	return nil
}

// RoleIdentifier calls the named role-constant getter on the registry.
func (c *Client) RoleIdentifier(ctx context.Context, method string) (ports.RoleID, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return ports.RoleID{}, fmt.Errorf("pack %s: %w", method, err)
	}

	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return ports.RoleID{}, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := c.abi.Unpack(method, res)
	if err != nil {
		return ports.RoleID{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	id, ok := out[0].([32]byte)
	if !ok {
		return ports.RoleID{}, fmt.Errorf("unexpected %s return type %T", method, out[0])
	}
	return ports.RoleID(id), nil
}

// HasRole reads current role membership via the hasRole view.
func (c *Client) HasRole(ctx context.Context, role ports.RoleID, wallet string) (bool, error) {
	data, err := c.abi.Pack("hasRole", [32]byte(role), common.HexToAddress(wallet))
	if err != nil {
		return false, fmt.Errorf("pack hasRole: %w", err)
	}

	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call hasRole: %w", err)
	}

	out, err := c.abi.Unpack("hasRole", res)
	if err != nil {
		return false, fmt.Errorf("unpack hasRole: %w", err)
	}
	held, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected hasRole return type %T", out[0])
	}
	return held, nil
}

// GrantRole submits a signed grantRole transaction and waits for the receipt.
func (c *Client) GrantRole(ctx context.Context, role ports.RoleID, wallet string) (*ports.TxReceipt, error) {
	return c.transact(ctx, "grantRole", role, wallet)
}

// RevokeRole submits a signed revokeRole transaction and waits for the receipt.
func (c *Client) RevokeRole(ctx context.Context, role ports.RoleID, wallet string) (*ports.TxReceipt, error) {
	return c.transact(ctx, "revokeRole", role, wallet)
}

func (c *Client) transact(ctx context.Context, method string, role ports.RoleID, wallet string) (*ports.TxReceipt, error) {
	data, err := c.abi.Pack(method, [32]byte(role), common.HexToAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas for %s: %w", method, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("tx_hash", signed.Hash().Hex()).
		Str("wallet", wallet).
		Msg("ledger transaction submitted")

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for %s receipt: %w", method, err)
	}

	return &ports.TxReceipt{
		TxHash:      receipt.TxHash.Hex(),
		Status:      receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}
