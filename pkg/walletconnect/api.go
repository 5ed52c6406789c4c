package walletconnect

import (
	"context"

	"github.com/team-renaissance/neo-wallet-adapter/pkg/neo"
)

// DisplayURIFn presents a pairing URI to the user, typically as a
// scannable QR code. dismiss hides the affordance again; dismissing has
// no effect on the connection state.
type DisplayURIFn func(uri string, dismiss func())

// AppMetadata describes the connecting application to the wallet.
type AppMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// ConnectOptions are the pairing options. The orchestrator treats them as
// opaque and passes them through to the sign client.
type ConnectOptions struct {
	App     AppMetadata
	Chains  []string
	Methods []string

	// DisplayURI is invoked with the pairing URI once the client has
	// published its session request.
	DisplayURI DisplayURIFn
}

// Session is the live reference to an established pairing between the
// application and a remote wallet.
type Session struct {
	Topic    string
	PeerID   string
	ChainID  string
	Accounts []string
	Peer     AppMetadata
}

// EventHandlers receives remote session events. Nil handlers are skipped.
type EventHandlers struct {
	// OnProposal carries the pairing URI of a session proposal.
	OnProposal func(uri string)
	// OnSessionCreated fires once a session has been established.
	OnSessionCreated func(session *Session)
	// OnSessionDeleted fires when the remote side tears the session down.
	OnSessionDeleted func()
}

// SignClient is the capability surface of the pairing/session SDK. The
// orchestrator only depends on this interface, so it can run against a
// substitute without a relay backend.
type SignClient interface {
	// Init prepares a client with a logger identifier and a relay
	// endpoint. Must be called before Connect.
	Init(ctx context.Context, logger, relayURL string) error

	// Connect runs the pairing handshake and returns the established
	// session.
	Connect(ctx context.Context, opts ConnectOptions) (*Session, error)

	// SubscribeToEvents registers the remote event handlers. Fails when
	// no session is held.
	SubscribeToEvents(handlers EventHandlers) error

	// Disconnect requests remote session teardown.
	Disconnect(ctx context.Context) error

	// AccountAddress derives the connected account address from the
	// session.
	AccountAddress() (string, error)

	// TestInvoke simulates a contract invocation without changing state.
	TestInvoke(ctx context.Context, inv neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error)

	// MultiTestInvoke simulates a batch of invocations in one execution.
	MultiTestInvoke(ctx context.Context, invs []neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error)

	// InvokeFunction asks the wallet to sign and relay an invocation.
	InvokeFunction(ctx context.Context, inv neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error)

	// MultiInvoke asks the wallet to sign and relay a batch invocation.
	MultiInvoke(ctx context.Context, invs []neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error)

	// HasSession reports whether a session is currently held.
	HasSession() bool

	// Session returns the held session, nil when disconnected.
	Session() *Session
}
