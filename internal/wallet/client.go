package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"galamsey-report-backend/internal/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Backend is the slice of an EVM JSON-RPC client the wallet needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

// DialFunc opens a Backend for one RPC endpoint.
type DialFunc func(ctx context.Context, url string) (Backend, error)

// DialEthclient dials with go-ethereum's ethclient.
func DialEthclient(ctx context.Context, url string) (Backend, error) {
	return ethclient.DialContext(ctx, url)
}

// Rewards is the strongly typed reward readback for one address.
type Rewards struct {
	Address string
	Amount  *big.Int
	Count   *big.Int
}

// AmountEther renders Amount in whole tokens (18 decimals).
func (r Rewards) AmountEther() string {
	return FormatEther(r.Amount)
}

// Client records report hashes on the configured contract. The relayer key
// signs and pays for every transaction; the reporter named in each call is the
// address the contract credits.
type Client struct {
	cfg      config.ChainConfig
	dial     DialFunc
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	logger   zerolog.Logger

	pollInterval time.Duration

	mu       sync.Mutex
	backend  Backend
	endpoint int
}

// NewClient does not dial. The first call that needs the chain connects to
// the first configured endpoint.
func NewClient(cfg config.ChainConfig, dial DialFunc, logger zerolog.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(reportRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	if dial == nil {
		dial = DialEthclient
	}

	c := &Client{
		cfg:          cfg,
		dial:         dial,
		abi:          parsed,
		logger:       logger.With().Str("component", "wallet_client").Logger(),
		pollInterval: 2 * time.Second,
	}

	if !cfg.RecordingEnabled() {
		return c, nil
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: contract %q", ErrInvalidAddress, cfg.ContractAddress)
	}
	c.contract = common.HexToAddress(cfg.ContractAddress)

	if cfg.RelayerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid relayer private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// SetPollInterval changes how often SubmitHash polls for a receipt.
func (c *Client) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

// Enabled reports whether hashes can be recorded at all.
func (c *Client) Enabled() bool {
	return c.cfg.RecordingEnabled() && c.key != nil
}

func (c *Client) ExpectedChainID() int64 {
	return c.cfg.ChainID
}

// ExplorerURL links a transaction on the block explorer.
func (c *Client) ExplorerURL(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", strings.TrimSuffix(c.cfg.ExplorerURL, "/"), txHash)
}

func (c *Client) active(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		return c.backend, nil
	}
	if len(c.cfg.RPCURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}
	url := c.cfg.RPCURLs[c.endpoint%len(c.cfg.RPCURLs)]
	b, err := c.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", url, err)
	}
	c.backend = b
	return b, nil
}

// CurrentNetwork returns the chain id of the active endpoint.
func (c *Client) CurrentNetwork(ctx context.Context) (int64, error) {
	b, err := c.active(ctx)
	if err != nil {
		return 0, err
	}
	id, err := b.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read chain id: %w", err)
	}
	return id.Int64(), nil
}

// SwitchToExpectedNetwork walks the configured endpoints until one reports
// the expected chain id and makes it active.
func (c *Client) SwitchToExpectedNetwork(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.cfg.RPCURLs)
	for i := 0; i < n; i++ {
		idx := (c.endpoint + i) % n
		url := c.cfg.RPCURLs[idx]

		b := c.backend
		if i > 0 || b == nil {
			var err error
			b, err = c.dial(ctx, url)
			if err != nil {
				c.logger.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
				continue
			}
		}

		id, err := b.ChainID(ctx)
		if err == nil && id.Int64() == c.cfg.ChainID {
			if c.backend != nil && c.backend != b {
				c.backend.Close()
			}
			c.backend = b
			c.endpoint = idx
			c.logger.Info().Str("url", url).Int64("chain_id", c.cfg.ChainID).Msg("switched to expected network")
			return nil
		}

		c.logger.Warn().
			Err(err).
			Str("url", url).
			Int64("expected_chain_id", c.cfg.ChainID).
			Msg("endpoint not on expected network")
		if b != c.backend {
			b.Close()
		}
	}
	return ErrWrongNetwork
}

// SubmitHash records reportHash on chain on behalf of reporter and returns the
// transaction hash. An already recorded hash yields *DuplicateHashError.
func (c *Client) SubmitHash(ctx context.Context, reportHash common.Hash, reporter string) (string, error) {
	if !c.Enabled() {
		return "", ErrNoDestination
	}
	if !common.IsHexAddress(reporter) || common.HexToAddress(reporter) == (common.Address{}) {
		return "", fmt.Errorf("%w: reporter %q", ErrInvalidAddress, reporter)
	}
	reporterAddr := common.HexToAddress(reporter)

	b, err := c.active(ctx)
	if err != nil {
		return "", err
	}

	dup, err := c.checkDuplicate(ctx, b, reportHash)
	if err != nil {
		return "", err
	}
	if dup != nil {
		return "", dup
	}

	data, err := c.abi.Pack(methodSubmitReportFor, [32]byte(reportHash), reporterAddr)
	if err != nil {
		return "", fmt.Errorf("failed to pack submitReportFor: %w", err)
	}

	chainID, err := b.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Int64() != c.cfg.ChainID {
		return "", ErrWrongNetwork
	}
	nonce, err := b.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.contract, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gas, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	txHash := signed.Hash()
	c.logger.Info().
		Str("tx_hash", txHash.Hex()).
		Str("report_hash", reportHash.Hex()).
		Str("reporter", reporterAddr.Hex()).
		Msg("report hash submitted")

	receipt, err := c.waitMined(ctx, b, txHash)
	if err != nil {
		return "", err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		// Lost a race with an earlier attempt that landed in the meantime.
		if dup, _ := c.checkDuplicate(ctx, b, reportHash); dup != nil {
			return "", dup
		}
		return "", fmt.Errorf("transaction %s reverted", txHash.Hex())
	}

	credited, ok := c.creditedReporter(receipt, reportHash)
	if !ok {
		return "", fmt.Errorf("transaction %s emitted no %s log", txHash.Hex(), eventReportSubmitted)
	}
	if credited != reporterAddr {
		return "", fmt.Errorf("transaction %s credited %s, want %s", txHash.Hex(), credited.Hex(), reporterAddr.Hex())
	}
	return txHash.Hex(), nil
}

// creditedReporter reads the reporter topic of the ReportSubmitted log for
// reportHash in receipt.
func (c *Client) creditedReporter(receipt *types.Receipt, reportHash common.Hash) (common.Address, bool) {
	event := c.abi.Events[eventReportSubmitted]
	for _, l := range receipt.Logs {
		if l == nil || l.Address != c.contract || len(l.Topics) != 3 {
			continue
		}
		if l.Topics[0] == event.ID && l.Topics[2] == reportHash {
			return common.BytesToAddress(l.Topics[1].Bytes()), true
		}
	}
	return common.Address{}, false
}

func (c *Client) checkDuplicate(ctx context.Context, b Backend, reportHash common.Hash) (*DuplicateHashError, error) {
	out, err := c.call(ctx, b, methodIsReportSubmitted, [32]byte(reportHash))
	if err != nil {
		return nil, err
	}
	submitted, ok := out.(bool)
	if !ok {
		return nil, fmt.Errorf("isReportSubmitted returned %T, want bool", out)
	}
	if !submitted {
		return nil, nil
	}
	return &DuplicateHashError{
		ReportHash: reportHash.Hex(),
		TxHash:     c.findSubmission(ctx, b, reportHash),
	}, nil
}

// findSubmission recovers the transaction that emitted ReportSubmitted for
// reportHash. Returns "" when the log cannot be found.
func (c *Client) findSubmission(ctx context.Context, b Backend, reportHash common.Hash) string {
	event := c.abi.Events[eventReportSubmitted]
	logs, err := b.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{event.ID}, nil, {reportHash}},
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("report_hash", reportHash.Hex()).Msg("failed to look up ReportSubmitted log")
		return ""
	}
	if len(logs) == 0 {
		return ""
	}
	return logs[0].TxHash.Hex()
}

func (c *Client) waitMined(ctx context.Context, b Backend, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// RewardsFor reads the reward balance and report count for address.
func (c *Client) RewardsFor(ctx context.Context, address string) (Rewards, error) {
	if !c.cfg.RecordingEnabled() {
		return Rewards{}, ErrNoDestination
	}
	if !common.IsHexAddress(address) {
		return Rewards{}, ErrInvalidAddress
	}
	addr := common.HexToAddress(address)

	b, err := c.active(ctx)
	if err != nil {
		return Rewards{}, err
	}
	amount, err := c.callUint(ctx, b, methodGetRewards, addr)
	if err != nil {
		return Rewards{}, err
	}
	count, err := c.callUint(ctx, b, methodGetReportCount, addr)
	if err != nil {
		return Rewards{}, err
	}
	return Rewards{Address: addr.Hex(), Amount: amount, Count: count}, nil
}

// RewardPerReport reads the contract's per-report reward.
func (c *Client) RewardPerReport(ctx context.Context) (*big.Int, error) {
	if !c.cfg.RecordingEnabled() {
		return nil, ErrNoDestination
	}
	b, err := c.active(ctx)
	if err != nil {
		return nil, err
	}
	return c.callUint(ctx, b, methodRewardPerReport)
}

func (c *Client) callUint(ctx context.Context, b Backend, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, b, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out.(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%s returned %T, want uint256", method, out)
	}
	return v, nil
}

// call runs a view method and returns its single output.
func (c *Client) call(ctx context.Context, b Backend, method string, args ...interface{}) (interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := b.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want 1", method, len(out))
	}
	return out[0], nil
}

// Close releases the active endpoint.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
}

var weiPerEther = big.NewInt(1_000_000_000_000_000_000)

// FormatEther renders a wei amount with up to 18 decimals, trailing zeros
// trimmed.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)
	whole, frac := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))

	s := whole.String()
	if frac.Sign() != 0 {
		fs := frac.String()
		fs = strings.Repeat("0", 18-len(fs)) + fs
		s += "." + strings.TrimRight(fs, "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}
