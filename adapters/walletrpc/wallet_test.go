package walletrpc

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
	"github.com/layer-3/taksu/session"
)

var (
	user  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	other = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// rpcError mimics a structured provider error with an EIP-1193 code.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type sendParams struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

// testProvider is served over an in-process RPC server under the eth,
// personal and web3 namespaces.
type testProvider struct {
	mu          sync.Mutex
	version     string
	accounts    []common.Address
	accountsErr error
	requestErr  error
	chainID     *hexutil.Big
	signature   hexutil.Bytes
	signErr     error
	sendHash    common.Hash
	sendErr     error
	receipt     *types.Receipt

	pollCount   int
	lastSignMsg hexutil.Bytes
	lastSend    sendParams
}

func newProvider() *testProvider {
	return &testProvider{
		version:   "MetaMask/v11.5.0",
		accounts:  []common.Address{user},
		chainID:   (*hexutil.Big)(big.NewInt(1)),
		signature: bytes.Repeat([]byte{0x5a}, 65),
		sendHash:  common.HexToHash("0xfeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface"),
	}
}

func (p *testProvider) ClientVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *testProvider) Accounts() ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollCount++
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return p.accounts, nil
}

func (p *testProvider) RequestAccounts() ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	return p.accounts, nil
}

func (p *testProvider) ChainId() (*hexutil.Big, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID, nil
}

func (p *testProvider) Sign(msg hexutil.Bytes, addr common.Address) (hexutil.Bytes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSignMsg = msg
	if p.signErr != nil {
		return nil, p.signErr
	}
	return p.signature, nil
}

func (p *testProvider) SendTransaction(args sendParams) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSend = args
	if p.sendErr != nil {
		return common.Hash{}, p.sendErr
	}
	return p.sendHash, nil
}

func (p *testProvider) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receipt, nil
}

func (p *testProvider) setVersion(v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version = v
}

func (p *testProvider) setAccounts(accounts ...common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

func (p *testProvider) setAccountsErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsErr = err
}

func (p *testProvider) setChain(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainID = (*hexutil.Big)(big.NewInt(id))
}

func (p *testProvider) polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollCount
}

func newRPCFixture(t *testing.T, p *testProvider, cfg Config) *Wallet {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", p))
	require.NoError(t, server.RegisterName("personal", p))
	require.NoError(t, server.RegisterName("web3", p))
	w := NewWallet(rpc.DialInProc(server), cfg, zerolog.Nop())
	t.Cleanup(func() {
		w.Close()
		server.Stop()
	})
	return w
}

func recvEvent(t *testing.T, ch <-chan ports.WalletEvent) ports.WalletEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wallet event")
		panic("unreachable")
	}
}

func TestAvailableAndBrandCheck(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{Brand: "MetaMask"})
	ctx := context.Background()

	assert.True(t, w.Available(ctx))
	assert.True(t, w.IsSupported(ctx))

	p.setVersion("Geth/v1.15.0-stable")
	assert.True(t, w.Available(ctx), "a foreign provider still answers")
	assert.False(t, w.IsSupported(ctx))
}

func TestBrandlessAcceptsAnyProvider(t *testing.T) {
	p := newProvider()
	p.setVersion("SomeWallet/v0.1")
	w := newRPCFixture(t, p, Config{})

	assert.True(t, w.IsSupported(context.Background()))
}

func TestAccountsAndChainID(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{})
	ctx := context.Background()

	accounts, err := w.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{user}, accounts)

	chainID, err := w.ChainID(ctx)
	require.NoError(t, err)
	assert.Zero(t, chainID.Cmp(big.NewInt(1)))
}

func TestRequestAccounts(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{})

	accounts, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{user}, accounts)
}

// bareProvider has no requestAccounts, like a plain dev node.
type bareProvider struct {
	accounts []common.Address
}

func (p *bareProvider) Accounts() []common.Address { return p.accounts }

func TestRequestAccountsFallsBackToAccounts(t *testing.T) {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &bareProvider{accounts: []common.Address{user}}))
	w := NewWallet(rpc.DialInProc(server), Config{}, zerolog.Nop())
	t.Cleanup(func() {
		w.Close()
		server.Stop()
	})

	accounts, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{user}, accounts)
}

func TestRequestAccountsUserRejected(t *testing.T) {
	p := newProvider()
	p.requestErr = &rpcError{code: 4001, msg: "User rejected the request."}
	w := newRPCFixture(t, p, Config{})

	_, err := w.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, core.ErrUserRejected)
}

func TestSignMessage(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{})

	sig, err := w.SignMessage(context.Background(), user, []byte("hello-nonce"))
	require.NoError(t, err)
	assert.Equal(t, []byte(p.signature), sig)
	assert.Equal(t, []byte("hello-nonce"), []byte(p.lastSignMsg), "the provider signs the raw message bytes")
}

func TestSignMessageRejected(t *testing.T) {
	p := newProvider()
	p.signErr = &rpcError{code: 4001, msg: "MetaMask Message Signature: User denied message signature."}
	w := newRPCFixture(t, p, Config{})

	_, err := w.SignMessage(context.Background(), user, []byte("n"))
	assert.ErrorIs(t, err, core.ErrUserRejected)
}

func TestSendTransaction(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{})

	hash, err := w.SendTransaction(context.Background(), user, other, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, p.sendHash, hash)

	assert.Equal(t, user, p.lastSend.From)
	require.NotNil(t, p.lastSend.To)
	assert.Equal(t, other, *p.lastSend.To)
	require.NotNil(t, p.lastSend.Value)
	assert.Zero(t, (*big.Int)(p.lastSend.Value).Cmp(big.NewInt(42)))
}

func TestSendTransactionInsufficientFunds(t *testing.T) {
	p := newProvider()
	p.sendErr = &rpcError{code: -32000, msg: "insufficient funds for gas * price + value"}
	w := newRPCFixture(t, p, Config{})

	_, err := w.SendTransaction(context.Background(), user, other, big.NewInt(1))
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
}

func TestTransactionReceiptAbsent(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{})

	receipt, err := w.TransactionReceipt(context.Background(), p.sendHash)
	require.NoError(t, err, "a pending transaction is not an error")
	assert.Nil(t, receipt)
}

func TestTransactionReceiptFound(t *testing.T) {
	p := newProvider()
	p.receipt = &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs:              []*types.Log{},
		TxHash:            p.sendHash,
		GasUsed:           21000,
	}
	w := newRPCFixture(t, p, Config{})

	receipt, err := w.TransactionReceipt(context.Background(), p.sendHash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, p.sendHash, receipt.TxHash)
}

func TestWalletUnavailableAfterClose(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{})
	w.Close()

	assert.False(t, w.Available(context.Background()))
	_, err := w.Accounts(context.Background())
	assert.ErrorIs(t, err, core.ErrWalletUnavailable)
}

func TestWatcherEmitsChangesAfterPriming(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{PollInterval: 10 * time.Millisecond})

	sink := make(chan ports.WalletEvent, 8)
	sub := w.SubscribeEvents(sink)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return p.polls() >= 2 }, time.Second, 5*time.Millisecond)
	select {
	case ev := <-sink:
		t.Fatalf("no event expected before anything changed, got %+v", ev)
	default:
	}

	p.setAccounts(other)
	ev := recvEvent(t, sink)
	assert.Equal(t, ports.AccountsChanged, ev.Kind)
	assert.Equal(t, []common.Address{other}, ev.Accounts)

	p.setChain(137)
	ev = recvEvent(t, sink)
	assert.Equal(t, ports.ChainChanged, ev.Kind)
	require.NotNil(t, ev.ChainID)
	assert.Zero(t, ev.ChainID.Cmp(big.NewInt(137)))
}

func TestWatcherCatchesChangeBeforeFirstTick(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{PollInterval: 50 * time.Millisecond})

	sink := make(chan ports.WalletEvent, 8)
	sub := w.SubscribeEvents(sink)
	defer sub.Unsubscribe()

	// Subscription returns with the baseline already sampled, so a change
	// landing before the first tick is a diff, not the new baseline.
	p.setAccounts(other)
	p.setChain(137)

	ev := recvEvent(t, sink)
	assert.Equal(t, ports.AccountsChanged, ev.Kind)
	assert.Equal(t, []common.Address{other}, ev.Accounts)

	ev = recvEvent(t, sink)
	assert.Equal(t, ports.ChainChanged, ev.Kind)
	require.NotNil(t, ev.ChainID)
	assert.Zero(t, ev.ChainID.Cmp(big.NewInt(137)))
}

func TestSessionConvergesOnChangeRacingConstruction(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{PollInterval: 50 * time.Millisecond})

	s := session.New(context.Background(), w, zerolog.Nop())
	defer s.Close()
	require.Equal(t, user, s.Account())

	// An account switch right after construction must still reach the
	// session through the watcher.
	p.setAccounts(other)

	require.Eventually(t, func() bool {
		return s.Account() == other
	}, time.Second, 5*time.Millisecond)
}

func TestWatcherSurvivesPollFailures(t *testing.T) {
	p := newProvider()
	w := newRPCFixture(t, p, Config{PollInterval: 10 * time.Millisecond})

	sink := make(chan ports.WalletEvent, 8)
	sub := w.SubscribeEvents(sink)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return p.polls() >= 2 }, time.Second, 5*time.Millisecond)

	p.setAccountsErr(&rpcError{code: -32603, msg: "internal error"})
	failedAt := p.polls()
	require.Eventually(t, func() bool { return p.polls() >= failedAt+3 }, time.Second, 5*time.Millisecond)

	p.setAccountsErr(nil)
	p.setAccounts(other)

	ev := recvEvent(t, sink)
	assert.Equal(t, ports.AccountsChanged, ev.Kind, "polling resumes after transient failures")
}
