package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"galamsey-report-backend/internal/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testContract = "0xf8e81D47203A594245E36C48e151709F0C19fBe8"

// fakeRewardPerReport is what the fake contract credits per report.
var fakeRewardPerReport = big.NewInt(10)

// fakeBackend is an in-memory report contract.
type fakeBackend struct {
	abi abi.ABI

	mu            sync.Mutex
	chainID       int64
	submitted     map[[32]byte]bool
	rewards       map[common.Address]*big.Int
	count         map[common.Address]*big.Int
	emptyReturn   bool
	sent          []*types.Transaction
	sendErr       error
	pendingPolls  int
	receiptStatus uint64
	receiptLogs   map[common.Hash][]*types.Log
	logs          []types.Log
	closed        bool
	// creditSender makes the contract credit msg.sender instead of the
	// reporter argument.
	creditSender bool
}

func newFakeBackend(t *testing.T, chainID int64) *fakeBackend {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(reportRegistryABI))
	require.NoError(t, err)
	return &fakeBackend{
		abi:           parsed,
		chainID:       chainID,
		submitted:     make(map[[32]byte]bool),
		rewards:       make(map[common.Address]*big.Int),
		count:         make(map[common.Address]*big.Int),
		receiptStatus: types.ReceiptStatusSuccessful,
		receiptLogs:   make(map[common.Hash][]*types.Log),
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.emptyReturn {
		return []byte{}, nil
	}
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case methodIsReportSubmitted:
		return method.Outputs.Pack(f.submitted[args[0].([32]byte)])
	case methodGetRewards:
		return method.Outputs.Pack(orZero(f.rewards[args[0].(common.Address)]))
	case methodGetReportCount:
		return method.Outputs.Pack(orZero(f.count[args[0].(common.Address)]))
	case methodRewardPerReport:
		return method.Outputs.Pack(fakeRewardPerReport)
	}
	return nil, fmt.Errorf("unexpected call %s", method.Name)
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	if f.receiptStatus != types.ReceiptStatusSuccessful {
		return nil
	}

	method, err := f.abi.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}
	reportHash := args[0].([32]byte)
	credited := args[1].(common.Address)
	if f.creditSender {
		sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(f.chainID)), tx)
		if err != nil {
			return err
		}
		credited = sender
	}

	f.submitted[reportHash] = true
	f.rewards[credited] = new(big.Int).Add(orZero(f.rewards[credited]), fakeRewardPerReport)
	f.count[credited] = new(big.Int).Add(orZero(f.count[credited]), big.NewInt(1))
	f.receiptLogs[tx.Hash()] = []*types.Log{{
		Address: *tx.To(),
		Topics: []common.Hash{
			f.abi.Events[eventReportSubmitted].ID,
			common.BytesToHash(credited.Bytes()),
			common.Hash(reportHash),
		},
		TxHash: tx.Hash(),
	}}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.receiptStatus, TxHash: txHash, Logs: f.receiptLogs[txHash]}, nil
}

func (f *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func dialTo(backends map[string]Backend) DialFunc {
	return func(_ context.Context, url string) (Backend, error) {
		b, ok := backends[url]
		if !ok {
			return nil, fmt.Errorf("dial %s: connection refused", url)
		}
		return b, nil
	}
}

func testChainConfig(t *testing.T) (config.ChainConfig, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return config.ChainConfig{
		RPCURLs:           []string{"http://rpc-a"},
		ChainID:           config.ScrollSepoliaChainID,
		ContractAddress:   testContract,
		RelayerPrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
		ExplorerURL:       "https://sepolia.scrollscan.com",
	}, crypto.PubkeyToAddress(key.PublicKey)
}

func newTestClient(t *testing.T, cfg config.ChainConfig, dial DialFunc) *Client {
	t.Helper()
	c, err := NewClient(cfg, dial, zerolog.Nop())
	require.NoError(t, err)
	c.SetPollInterval(1)
	return c
}
