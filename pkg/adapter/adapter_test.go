package adapter

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team-renaissance/neo-wallet-adapter/pkg/neo"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/walletconnect"
)

// fakeSignClient substitutes the relay backend for orchestrator tests.
type fakeSignClient struct {
	mu sync.Mutex

	initErr       error
	connectErr    error
	addressErr    error
	subscribeErr  error
	disconnectErr error
	invokeErr     error

	session    *walletconnect.Session
	address    string
	invokeResp *neo.InvocationResponse
	handlers   walletconnect.EventHandlers

	// blockConnect keeps Connect pending until the channel is closed.
	blockConnect chan struct{}

	initCount       int
	connectCount    int
	subscribeCount  int
	disconnectCount int
	invokeCount     int
	lastSigners     []neo.Signer
}

func newFakeSignClient() *fakeSignClient {
	return &fakeSignClient{
		session: &walletconnect.Session{
			Topic:    "topic",
			PeerID:   "peer",
			ChainID:  "neo3:mainnet",
			Accounts: []string{"neo3:mainnet:NQyJR9dUkPJSzqv3hzRotAtTfakeAddr1"},
		},
		address: "NQyJR9dUkPJSzqv3hzRotAtTfakeAddr1",
	}
}

func (f *fakeSignClient) Init(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCount++
	return f.initErr
}

func (f *fakeSignClient) Connect(_ context.Context, _ walletconnect.ConnectOptions) (*walletconnect.Session, error) {
	f.mu.Lock()
	f.connectCount++
	block := f.blockConnect
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.session, nil
}

func (f *fakeSignClient) SubscribeToEvents(handlers walletconnect.EventHandlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCount++
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers = handlers
	return nil
}

func (f *fakeSignClient) Disconnect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCount++
	return f.disconnectErr
}

func (f *fakeSignClient) AccountAddress() (string, error) {
	if f.addressErr != nil {
		return "", f.addressErr
	}
	return f.address, nil
}

func (f *fakeSignClient) invoke(signers []neo.Signer) (*neo.InvocationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invokeCount++
	f.lastSigners = signers
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.invokeResp, nil
}

func (f *fakeSignClient) TestInvoke(_ context.Context, _ neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return f.invoke(signers)
}

func (f *fakeSignClient) MultiTestInvoke(_ context.Context, _ []neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return f.invoke(signers)
}

func (f *fakeSignClient) InvokeFunction(_ context.Context, _ neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return f.invoke(signers)
}

func (f *fakeSignClient) MultiInvoke(_ context.Context, _ []neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return f.invoke(signers)
}

func (f *fakeSignClient) HasSession() bool {
	return f.session != nil
}

func (f *fakeSignClient) Session() *walletconnect.Session {
	return f.session
}

// eventRecorder captures every emitted event in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *eventRecorder) errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, e := range r.events {
		if e.Kind == EventError {
			errs = append(errs, e.Err)
		}
	}
	return errs
}

func newTestAdapter(f *fakeSignClient) (*WalletAdapter, *eventRecorder) {
	a := New(Config{
		Logger: "test",
		Options: walletconnect.ConnectOptions{
			Chains: []string{"neo3:mainnet"},
		},
		NewSignClient: func() walletconnect.SignClient { return f },
	})
	rec := &eventRecorder{}
	a.On(EventConnect, rec.record)
	a.On(EventDisconnect, rec.record)
	a.On(EventError, rec.record)
	return a, rec
}

func TestConnectSuccess(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)

	require.False(t, a.Connecting())
	require.NoError(t, a.Connect(context.Background()))

	assert.True(t, a.Connected())
	assert.False(t, a.Connecting())
	assert.Equal(t, f.address, a.Address())
	assert.Equal(t, []EventKind{EventConnect}, rec.kinds())
	assert.Equal(t, 1, f.initCount)
	assert.Equal(t, 1, f.connectCount)
	assert.Equal(t, 1, f.subscribeCount)
}

func TestConnectWhileConnectedIsNoop(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)

	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, a.Connect(context.Background()))

	assert.Equal(t, 1, f.connectCount)
	assert.Equal(t, 1, f.initCount)
	assert.Equal(t, []EventKind{EventConnect}, rec.kinds())
}

func TestConnectWhileConnectingIsNoop(t *testing.T) {
	f := newFakeSignClient()
	f.blockConnect = make(chan struct{})
	a, _ := newTestAdapter(f)

	done := make(chan error, 1)
	go func() {
		done <- a.Connect(context.Background())
	}()
	// Wait for the first connect to be in flight.
	for !a.Connecting() {
		runtime.Gosched()
	}

	require.NoError(t, a.Connect(context.Background()))
	assert.Equal(t, 1, f.initCount)

	close(f.blockConnect)
	require.NoError(t, <-done)
	assert.True(t, a.Connected())
	assert.False(t, a.Connecting())
}

func TestConnectHandshakeFailure(t *testing.T) {
	f := newFakeSignClient()
	f.connectErr = assert.AnError
	a, rec := newTestAdapter(f)

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsWalletError(err, CodeConnectFailed))
	assert.False(t, a.Connected())
	assert.False(t, a.Connecting())
	assert.Equal(t, []EventKind{EventError}, rec.kinds())
	require.Len(t, rec.errs(), 1)
	assert.Equal(t, err, rec.errs()[0])
}

func TestConnectWithoutUsableSession(t *testing.T) {
	f := newFakeSignClient()
	f.session = nil
	a, rec := newTestAdapter(f)

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsWalletError(err, CodeAccountRetrieval))
	assert.False(t, IsWalletError(err, CodeConnectFailed))
	assert.Equal(t, []EventKind{EventError}, rec.kinds())
}

func TestConnectAddressRetrievalFailure(t *testing.T) {
	f := newFakeSignClient()
	f.addressErr = assert.AnError
	a, rec := newTestAdapter(f)

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsWalletError(err, CodeAccountRetrieval))
	assert.False(t, a.Connected())
	// The half-established session is torn down so the wallet is not
	// left paired by a connect the adapter never committed.
	assert.Equal(t, 1, f.disconnectCount)
	assert.Equal(t, []EventKind{EventError}, rec.kinds())
}

func TestConnectSubscribeFailure(t *testing.T) {
	f := newFakeSignClient()
	f.subscribeErr = assert.AnError
	a, _ := newTestAdapter(f)

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsWalletError(err, CodeConnectFailed))
	assert.False(t, a.Connected())
	assert.Equal(t, 1, f.disconnectCount)
}

func TestConnectDoesNotRewrapWalletErrors(t *testing.T) {
	f := newFakeSignClient()
	f.connectErr = NewWalletError(CodeAccountRetrieval, "kept as is")
	a, _ := newTestAdapter(f)

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, f.connectErr, err)
	assert.True(t, IsWalletError(err, CodeAccountRetrieval))
}

func TestDisconnectWithoutSessionStillEmits(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)

	require.NoError(t, a.Disconnect(context.Background()))

	assert.Equal(t, 0, f.disconnectCount)
	assert.Equal(t, []EventKind{EventDisconnect}, rec.kinds())
}

func TestDisconnectClearsSession(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))

	require.NoError(t, a.Disconnect(context.Background()))

	assert.False(t, a.Connected())
	assert.Empty(t, a.Address())
	assert.Equal(t, 1, f.disconnectCount)
	assert.Equal(t, []EventKind{EventConnect, EventDisconnect}, rec.kinds())
}

func TestDisconnectTeardownFailureIsNonFatal(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))
	f.disconnectErr = assert.AnError

	require.NoError(t, a.Disconnect(context.Background()))

	assert.Equal(t, []EventKind{EventConnect, EventError, EventDisconnect}, rec.kinds())
	require.Len(t, rec.errs(), 1)
	assert.True(t, IsWalletError(rec.errs()[0], CodeDisconnectFailed))
	// Handles survive a failed teardown.
	assert.True(t, a.Connected())
}

func TestForcedDisconnectIsIdempotent(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))
	require.NotNil(t, f.handlers.OnSessionDeleted)

	f.handlers.OnSessionDeleted()

	assert.False(t, a.Connected())
	assert.Empty(t, a.Address())
	assert.Equal(t, []EventKind{EventConnect, EventError, EventDisconnect}, rec.kinds())
	require.Len(t, rec.errs(), 1)
	assert.True(t, IsWalletError(rec.errs()[0], CodeUnexpectedDisconnect))

	// Second delivery finds no session and emits nothing.
	f.handlers.OnSessionDeleted()
	assert.Equal(t, []EventKind{EventConnect, EventError, EventDisconnect}, rec.kinds())
}

func invokeAll(t *testing.T, a *WalletAdapter) []*neo.InvocationResult {
	t.Helper()
	ctx := context.Background()
	single := neo.InvokeRequest{
		ContractInvocation: neo.ContractInvocation{
			ScriptHash: "0xef4073a0f2b305a38ec4050e4d3d28bc40ea63f5",
			Operation:  "symbol",
		},
	}
	multi := neo.MultiInvokeRequest{
		Invocations: []neo.ContractInvocation{single.ContractInvocation},
	}
	var results []*neo.InvocationResult
	for _, call := range []func() (*neo.InvocationResult, error){
		func() (*neo.InvocationResult, error) { return a.TestInvoke(ctx, single) },
		func() (*neo.InvocationResult, error) { return a.MultiTestInvoke(ctx, multi) },
		func() (*neo.InvocationResult, error) { return a.Invoke(ctx, single) },
		func() (*neo.InvocationResult, error) { return a.MultiInvoke(ctx, multi) },
	} {
		result, err := call()
		require.NoError(t, err)
		results = append(results, result)
	}
	return results
}

func TestInvokeWhileDisconnected(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)
	ctx := context.Background()

	_, err := a.TestInvoke(ctx, neo.InvokeRequest{})
	assert.True(t, IsWalletError(err, CodeNotConnected))
	_, err = a.MultiTestInvoke(ctx, neo.MultiInvokeRequest{})
	assert.True(t, IsWalletError(err, CodeNotConnected))
	_, err = a.Invoke(ctx, neo.InvokeRequest{})
	assert.True(t, IsWalletError(err, CodeNotConnected))
	_, err = a.MultiInvoke(ctx, neo.MultiInvokeRequest{})
	assert.True(t, IsWalletError(err, CodeNotConnected))

	// No SDK call is made and nothing is emitted.
	assert.Equal(t, 0, f.invokeCount)
	assert.Empty(t, rec.kinds())
}

func TestInvokeTranslatesHaltToSuccess(t *testing.T) {
	f := newFakeSignClient()
	f.invokeResp = &neo.InvocationResponse{
		State:       neo.StateHalt,
		GasConsumed: "997775",
		Stack:       []neo.StackItem{{Type: "ByteString", Value: "TkVP"}},
	}
	a, _ := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))

	for _, result := range invokeAll(t, a) {
		assert.Equal(t, neo.StatusSuccess, result.Status)
		// The success payload is the full raw result.
		assert.Equal(t, f.invokeResp, result.Data)
		assert.Empty(t, result.Message)
	}
	assert.Equal(t, 4, f.invokeCount)
}

func TestInvokeTranslatesFaultToError(t *testing.T) {
	f := newFakeSignClient()
	f.invokeResp = &neo.InvocationResponse{
		State: "FAULT",
		Error: &neo.InvokeError{Message: "m", Code: 7},
	}
	a, _ := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))

	for _, result := range invokeAll(t, a) {
		assert.Equal(t, neo.StatusError, result.Status)
		assert.Equal(t, "m", result.Message)
		assert.Equal(t, int64(7), result.Code)
		assert.Nil(t, result.Data)
	}
}

func TestInvokeSDKFailureNotifiesThenPropagates(t *testing.T) {
	f := newFakeSignClient()
	f.invokeErr = assert.AnError
	a, rec := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))

	_, err := a.TestInvoke(context.Background(), neo.InvokeRequest{})
	require.Error(t, err)
	require.Len(t, rec.errs(), 1)
	assert.Equal(t, err, rec.errs()[0])
}

func TestSingleInvokeForwardsFirstSignerOnly(t *testing.T) {
	f := newFakeSignClient()
	f.invokeResp = &neo.InvocationResponse{State: neo.StateHalt}
	a, _ := newTestAdapter(f)
	require.NoError(t, a.Connect(context.Background()))

	signers := []neo.Signer{
		{Account: "first", Scopes: neo.ScopeCalledByEntry},
		{Account: "second", Scopes: neo.ScopeGlobal},
	}
	_, err := a.Invoke(context.Background(), neo.InvokeRequest{Signers: signers})
	require.NoError(t, err)
	require.Len(t, f.lastSigners, 1)
	assert.Equal(t, "first", f.lastSigners[0].Account)

	_, err = a.MultiInvoke(context.Background(), neo.MultiInvokeRequest{Signers: signers})
	require.NoError(t, err)
	assert.Len(t, f.lastSigners, 2)
}

func TestProposalDisplaysPairingCode(t *testing.T) {
	f := newFakeSignClient()
	var displayed string
	a, _ := newTestAdapter(f)
	a.cfg.Options.DisplayURI = func(uri string, dismiss func()) {
		displayed = uri
		// Dismissal must not touch the connection state.
		dismiss()
	}
	require.NoError(t, a.Connect(context.Background()))
	require.NotNil(t, f.handlers.OnProposal)

	f.handlers.OnProposal("wc:deadbeef@1?bridge=x&key=y")

	assert.Equal(t, "wc:deadbeef@1?bridge=x&key=y", displayed)
	assert.True(t, a.Connected())
}

func TestReadyReflectsDisplayAffordance(t *testing.T) {
	a, _ := newTestAdapter(newFakeSignClient())
	assert.False(t, a.Ready())

	a.cfg.Options.DisplayURI = func(string, func()) {}
	assert.True(t, a.Ready())
}

func TestReconnectAfterDisconnect(t *testing.T) {
	f := newFakeSignClient()
	a, rec := newTestAdapter(f)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Disconnect(ctx))
	require.NoError(t, a.Connect(ctx))

	assert.True(t, a.Connected())
	assert.Equal(t, 2, f.connectCount)
	assert.Equal(t, []EventKind{EventConnect, EventDisconnect, EventConnect}, rec.kinds())
}
