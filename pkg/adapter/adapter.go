package adapter

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/team-renaissance/neo-wallet-adapter/pkg/log"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/neo"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/walletconnect"
)

// Config fixes the adapter's static configuration at construction.
type Config struct {
	// Logger is the identifier handed to every sign client.
	Logger string
	// RelayURL is the relay endpoint; empty selects a public bridge.
	RelayURL string
	// Options are the pairing options, passed through to the sign client
	// opaque.
	Options walletconnect.ConnectOptions
	// NewSignClient supplies a fresh sign client per connection attempt.
	// Defaults to the relay backed implementation.
	NewSignClient func() walletconnect.SignClient
}

// WalletAdapter pairs the application with a remote Neo wallet and
// forwards contract invocations to it. Session handle and account address
// are held together: both set by a successful Connect, both cleared by
// Disconnect or a remote teardown.
type WalletAdapter struct {
	cfg    Config
	logger *log.NamedLogger
	events eventEmitter

	// connecting is the transient guard against overlapping connects.
	connecting *atomic.Bool

	// op serializes Disconnect and the remote teardown path.
	op sync.Mutex

	mu      sync.Mutex
	client  walletconnect.SignClient
	session *walletconnect.Session
	address string
}

// New builds an adapter. The returned adapter is disconnected.
func New(cfg Config) *WalletAdapter {
	if cfg.NewSignClient == nil {
		cfg.NewSignClient = func() walletconnect.SignClient {
			return walletconnect.NewClient()
		}
	}
	name := cfg.Logger
	if name == "" {
		name = "wallet-adapter"
	}
	return &WalletAdapter{
		cfg:        cfg,
		logger:     log.Named(name),
		connecting: atomic.NewBool(false),
	}
}

// On registers a handler for one event kind and returns its cancel
// function.
func (a *WalletAdapter) On(kind EventKind, handler EventHandler) (cancel func()) {
	return a.events.subscribe(kind, handler)
}

// Address returns the connected account address, empty when disconnected.
func (a *WalletAdapter) Address() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.address
}

// Ready reports whether a pairing display affordance is configured.
func (a *WalletAdapter) Ready() bool {
	return a.cfg.Options.DisplayURI != nil
}

// Connecting reports whether a connect is in flight.
func (a *WalletAdapter) Connecting() bool {
	return a.connecting.Load()
}

// Connected reports whether a session handle and account address are
// held.
func (a *WalletAdapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && a.address != ""
}

// Connect establishes a session with a remote wallet. Calling it while
// already connected or connecting is a no-op. Failures are emitted as an
// error event and returned.
func (a *WalletAdapter) Connect(ctx context.Context) error {
	if a.Connected() {
		return nil
	}
	if !a.connecting.CAS(false, true) {
		return nil
	}
	// The transient flag is cleared on every exit path.
	defer a.connecting.Store(false)
	if err := a.connect(ctx); err != nil {
		a.emitError(err)
		return err
	}
	a.events.emit(Event{Kind: EventConnect})
	return nil
}

func (a *WalletAdapter) connect(ctx context.Context) error {
	client := a.cfg.NewSignClient()
	if err := client.Init(ctx, a.cfg.Logger, a.cfg.RelayURL); err != nil {
		return wrapWalletError(CodeConnectFailed, "initialize wallet session", err)
	}
	session, err := client.Connect(ctx, a.cfg.Options)
	if err != nil {
		return wrapWalletError(CodeConnectFailed, "establish wallet connection", err)
	}
	if session == nil {
		return NewWalletError(CodeAccountRetrieval, "connected without a usable session")
	}
	address, err := client.AccountAddress()
	if err != nil {
		a.teardownFailedConnect(ctx, client)
		return wrapWalletError(CodeAccountRetrieval, "retrieve account address", err)
	}
	err = client.SubscribeToEvents(walletconnect.EventHandlers{
		OnProposal:       a.onSessionProposal,
		OnSessionCreated: a.onSessionCreated,
		OnSessionDeleted: a.onSessionDeleted,
	})
	if err != nil {
		a.teardownFailedConnect(ctx, client)
		return wrapWalletError(CodeConnectFailed, "subscribe to wallet events", err)
	}
	a.mu.Lock()
	a.client = client
	a.session = session
	a.address = address
	a.mu.Unlock()
	a.logger.Infof("connected to wallet account %v", address)
	return nil
}

// teardownFailedConnect closes a session the adapter never committed, so
// a failed connect does not leave the wallet paired and the relay
// connection open.
func (a *WalletAdapter) teardownFailedConnect(ctx context.Context, client walletconnect.SignClient) {
	if err := client.Disconnect(ctx); err != nil {
		a.logger.Warnf("tear down half-established session:%v", err)
	}
}

// Disconnect requests remote session teardown. Teardown failures are
// surfaced through the error event only; the disconnect event fires at
// the end regardless of outcome.
func (a *WalletAdapter) Disconnect(ctx context.Context) error {
	a.op.Lock()
	a.mu.Lock()
	client := a.client
	session := a.session
	a.mu.Unlock()
	if session != nil {
		if err := client.Disconnect(ctx); err != nil {
			a.emitError(wrapWalletError(CodeDisconnectFailed, "tear down wallet session", err))
		} else {
			a.clearSession()
		}
	}
	a.op.Unlock()
	a.events.emit(Event{Kind: EventDisconnect})
	return nil
}

// onSessionDeleted handles a remote initiated teardown. No-op when no
// session is held, so a repeated delivery emits nothing twice.
func (a *WalletAdapter) onSessionDeleted() {
	a.op.Lock()
	a.mu.Lock()
	held := a.session != nil
	a.mu.Unlock()
	if !held {
		a.op.Unlock()
		return
	}
	a.clearSession()
	a.op.Unlock()
	a.emitError(NewWalletError(CodeUnexpectedDisconnect, "wallet disconnected unexpectedly"))
	a.events.emit(Event{Kind: EventDisconnect})
}

func (a *WalletAdapter) onSessionProposal(uri string) {
	if !a.Ready() {
		a.logger.Warnf("pairing proposal received without a display affordance, uri:%v", uri)
		return
	}
	// Dismissing the pairing code has no effect on the connection state.
	a.cfg.Options.DisplayURI(uri, func() {})
}

func (a *WalletAdapter) onSessionCreated(session *walletconnect.Session) {
	a.logger.Infof("wallet session created, peer:%v", session.Peer.Name)
}

func (a *WalletAdapter) clearSession() {
	a.mu.Lock()
	a.client = nil
	a.session = nil
	a.address = ""
	a.mu.Unlock()
}

// TestInvoke forwards a read-only invocation for simulated execution.
func (a *WalletAdapter) TestInvoke(ctx context.Context, req neo.InvokeRequest) (*neo.InvocationResult, error) {
	client, err := a.connectedClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.TestInvoke(ctx, req.ContractInvocation, firstSigner(req.Signers))
	if err != nil {
		a.emitError(err)
		return nil, err
	}
	return neo.NewInvocationResult(resp), nil
}

// MultiTestInvoke forwards a batch of read-only invocations for one
// simulated execution.
func (a *WalletAdapter) MultiTestInvoke(ctx context.Context, req neo.MultiInvokeRequest) (*neo.InvocationResult, error) {
	client, err := a.connectedClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.MultiTestInvoke(ctx, req.Invocations, req.Signers)
	if err != nil {
		a.emitError(err)
		return nil, err
	}
	return neo.NewInvocationResult(resp), nil
}

// Invoke forwards a state-changing invocation to be signed by the wallet.
func (a *WalletAdapter) Invoke(ctx context.Context, req neo.InvokeRequest) (*neo.InvocationResult, error) {
	client, err := a.connectedClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.InvokeFunction(ctx, req.ContractInvocation, firstSigner(req.Signers))
	if err != nil {
		a.emitError(err)
		return nil, err
	}
	return neo.NewInvocationResult(resp), nil
}

// MultiInvoke forwards a batch of state-changing invocations signed as
// one transaction.
func (a *WalletAdapter) MultiInvoke(ctx context.Context, req neo.MultiInvokeRequest) (*neo.InvocationResult, error) {
	client, err := a.connectedClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.MultiInvoke(ctx, req.Invocations, req.Signers)
	if err != nil {
		a.emitError(err)
		return nil, err
	}
	return neo.NewInvocationResult(resp), nil
}

func (a *WalletAdapter) connectedClient() (walletconnect.SignClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.address == "" {
		return nil, NewWalletError(CodeNotConnected, "no wallet connected")
	}
	return a.client, nil
}

func (a *WalletAdapter) emitError(err error) {
	a.events.emit(Event{Kind: EventError, Err: err})
}

// Single invocations carry at most the first signer, batch invocations
// the full signer list.
func firstSigner(signers []neo.Signer) []neo.Signer {
	if len(signers) == 0 {
		return nil
	}
	return signers[:1]
}
