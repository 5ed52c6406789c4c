package walletconnect

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"

	"github.com/team-renaissance/neo-wallet-adapter/pkg/errors"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/log"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/neo"
)

var errSessionClosed = errors.New("session closed")

// Client is a relay-backed SignClient speaking the v1 bridge protocol
// toward a Neo N3 wallet. A client pairs at most once; create a fresh one
// for every connection attempt.
type Client struct {
	logger      *log.NamedLogger
	readTimeout time.Duration
	bridgeURL   string

	handshakeTopic string
	clientID       string
	encryptionKey  []byte

	// None zero value means Connect was already called; recreate the
	// client instead of reusing it.
	connectCount *atomic.Int64
	closing      *atomic.Bool

	mu        sync.Mutex
	conn      *websocket.Conn
	session   *Session
	handlers  EventHandlers
	announced bool

	// Single in-flight JSON-RPC exchange toward the wallet.
	rpcMu     sync.Mutex
	responses chan string
	done      chan struct{}
}

var _ SignClient = (*Client)(nil)

// NewClient returns an unpaired relay client with fresh pairing material.
func NewClient() *Client {
	encryptionKey, _ := generateRandomBytes(256 / 8)
	return &Client{
		logger:         log.Named("wallet-connect"),
		readTimeout:    time.Minute * 5,
		handshakeTopic: uuid.NewString(),
		clientID:       uuid.NewString(),
		encryptionKey:  encryptionKey,
		connectCount:   atomic.NewInt64(0),
		closing:        atomic.NewBool(false),
		responses:      make(chan string, 4),
		done:           make(chan struct{}),
	}
}

// Init stores the logger identifier and relay endpoint. An empty relay
// endpoint selects one of the public bridges.
func (c *Client) Init(_ context.Context, logger, relayURL string) error {
	if logger != "" {
		c.logger = log.Named(logger)
	}
	if relayURL == "" {
		relayURL = randomBridgeURL()
	}
	c.bridgeURL = relayURL
	return nil
}

// Connect dials the relay, publishes the session request, surfaces the
// pairing URI through opts.DisplayURI and blocks until the wallet approves
// or rejects the pairing.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) (*Session, error) {
	if !c.connectCount.CAS(0, 1) {
		return nil, errors.NewWithReport("duplicate connect, create a fresh client")
	}
	if c.bridgeURL == "" {
		return nil, errors.New("client not initialized")
	}
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, websocketURL(c.bridgeURL), nil)
	if err != nil {
		return nil, errors.WrapAndReport(err, "dial relay bridge")
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	session, err := c.pair(ctx, opts)
	if err != nil {
		c.closing.Store(true)
		conn.Close()
		return nil, err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	go c.readLoop(conn)
	return session, nil
}

func (c *Client) pair(ctx context.Context, opts ConnectOptions) (*Session, error) {
	if err := c.subscribeTopic(c.clientID); err != nil {
		return nil, err
	}
	if err := c.sendSessionRequest(opts); err != nil {
		return nil, err
	}
	uri := pairingURI(c.handshakeTopic, c.bridgeURL, c.encryptionKey)
	c.logger.Debugf("pairing uri generated:%v", uri)
	if opts.DisplayURI != nil {
		opts.DisplayURI(uri, func() {})
	}
	return c.awaitApproval(ctx)
}

func (c *Client) sendSessionRequest(opts ConnectOptions) error {
	jsonRpc := newJSONRpcRequest(methodSessionRequest, peerInfo{
		PeerID:   c.clientID,
		PeerMeta: opts.App,
		Chains:   opts.Chains,
	})
	payload, err := c.encryptJSONRpc(jsonRpc.Marshal())
	if err != nil {
		return err
	}
	msg := wcMessage{
		Topic:   c.handshakeTopic,
		Type:    messageTypePub,
		Payload: payload.Marshal(),
		Silent:  true,
	}
	c.logger.Debugf("session request:%v", string(msg.Marshal()))
	return c.send(msg.Marshal())
}

func (c *Client) awaitApproval(ctx context.Context) (*Session, error) {
	payload, err := c.readRelayPayload(ctx)
	if err != nil {
		if errors.Is(err, errSessionClosed) {
			return nil, errors.New("pairing rejected by wallet")
		}
		return nil, err
	}
	c.logger.Debugf("session response:%v", payload)
	if errStr := gjson.Get(payload, "error.message").String(); errStr != "" {
		return nil, errors.New(errStr)
	}
	result := gjson.Get(payload, "result").Raw
	var info sessionInfo
	if err := json.Unmarshal([]byte(result), &info); err != nil {
		return nil, errors.WrapAndReport(err, "unmarshal session info")
	}
	if !info.Approved {
		return nil, errors.New("pairing rejected by wallet")
	}
	return &Session{
		Topic:    c.handshakeTopic,
		PeerID:   info.PeerID,
		ChainID:  info.ChainID,
		Accounts: info.Accounts,
		Peer:     info.PeerMeta,
	}, nil
}

// SubscribeToEvents registers the remote event handlers. The established
// session is announced to OnSessionCreated exactly once.
func (c *Client) SubscribeToEvents(handlers EventHandlers) error {
	c.mu.Lock()
	session := c.session
	if session == nil {
		c.mu.Unlock()
		return errors.New("no session to subscribe to")
	}
	c.handlers = handlers
	announce := !c.announced && handlers.OnSessionCreated != nil
	c.announced = c.announced || announce
	c.mu.Unlock()
	if announce {
		handlers.OnSessionCreated(session)
	}
	return nil
}

// Disconnect publishes a teardown update to the wallet and closes the
// relay connection.
func (c *Client) Disconnect(_ context.Context) error {
	c.mu.Lock()
	session := c.session
	conn := c.conn
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	jsonRpc := newJSONRpcRequest(methodSessionUpdate, map[string]interface{}{
		"approved": false,
		"chainId":  nil,
		"accounts": nil,
	})
	payload, err := c.encryptJSONRpc(jsonRpc.Marshal())
	if err != nil {
		return err
	}
	msg := wcMessage{
		Topic:   session.PeerID,
		Type:    messageTypePub,
		Payload: payload.Marshal(),
		Silent:  true,
	}
	if err := c.send(msg.Marshal()); err != nil {
		return err
	}
	c.closing.Store(true)
	if conn != nil {
		conn.Close()
	}
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return nil
}

// AccountAddress derives the connected account address from the session.
// CAIP style account entries keep only their address segment.
func (c *Client) AccountAddress() (string, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil || len(session.Accounts) == 0 {
		return "", errors.New("no wallet accounts acquired")
	}
	return accountAddress(session.Accounts[0]), nil
}

// HasSession reports whether a session is currently held.
func (c *Client) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Session returns the held session, nil when disconnected.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

type singleInvokeParams struct {
	neo.ContractInvocation
	Signers []neo.Signer `json:"signers,omitempty"`
}

type multiInvokeParams struct {
	Invocations []neo.ContractInvocation `json:"invocations"`
	Signers     []neo.Signer             `json:"signers,omitempty"`
}

// TestInvoke simulates a contract invocation without changing state.
func (c *Client) TestInvoke(ctx context.Context, inv neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return c.invoke(ctx, MethodTestInvoke, singleInvokeParams{ContractInvocation: inv, Signers: signers})
}

// MultiTestInvoke simulates a batch of invocations in one execution.
func (c *Client) MultiTestInvoke(ctx context.Context, invs []neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return c.invoke(ctx, MethodMultiTestInvoke, multiInvokeParams{Invocations: invs, Signers: signers})
}

// InvokeFunction asks the wallet to sign and relay an invocation.
func (c *Client) InvokeFunction(ctx context.Context, inv neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return c.invoke(ctx, MethodInvokeFunction, singleInvokeParams{ContractInvocation: inv, Signers: signers})
}

// MultiInvoke asks the wallet to sign and relay a batch invocation.
func (c *Client) MultiInvoke(ctx context.Context, invs []neo.ContractInvocation, signers []neo.Signer) (*neo.InvocationResponse, error) {
	return c.invoke(ctx, MethodMultiInvoke, multiInvokeParams{Invocations: invs, Signers: signers})
}

func (c *Client) invoke(ctx context.Context, method string, params interface{}) (*neo.InvocationResponse, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, errors.New("no session held")
	}
	jsonRpc := newJSONRpcRequest(method, params)
	payload, err := c.encryptJSONRpc(jsonRpc.Marshal())
	if err != nil {
		return nil, err
	}
	msg := wcMessage{
		Topic:   session.PeerID,
		Type:    messageTypePub,
		Payload: payload.Marshal(),
		Silent:  jsonRpc.IsSilentPayload(),
	}
	c.rpcMu.Lock()
	defer c.rpcMu.Unlock()
	c.drainStaleResponses()
	c.logger.Debugf("%v request:%v", method, string(msg.Marshal()))
	if err := c.send(msg.Marshal()); err != nil {
		return nil, err
	}
	return c.awaitInvokeResponse(ctx, jsonRpc.Id)
}

func (c *Client) awaitInvokeResponse(ctx context.Context, id int64) (*neo.InvocationResponse, error) {
	timer := time.NewTimer(c.readTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "await wallet response")
		case <-timer.C:
			return nil, errors.NewWithReport("wallet response timed out")
		case <-c.done:
			return nil, errSessionClosed
		case payload := <-c.responses:
			if gjson.Get(payload, "id").Int() != id {
				c.logger.Warnf("skipping unmatched relay payload:%v", payload)
				continue
			}
			if errMsg := gjson.Get(payload, "error.message"); errMsg.Exists() {
				return nil, errors.New(errMsg.String())
			}
			result := gjson.Get(payload, "result").Raw
			var resp neo.InvocationResponse
			if err := json.Unmarshal([]byte(result), &resp); err != nil {
				return nil, errors.WrapAndReport(err, "unmarshal invocation response")
			}
			return &resp, nil
		}
	}
}

func (c *Client) drainStaleResponses() {
	for {
		select {
		case payload := <-c.responses:
			c.logger.Warnf("dropping stale relay payload:%v", payload)
		default:
			return
		}
	}
}

// readLoop pumps relay messages after pairing: teardown updates close the
// session, anything else is a wallet response for the in-flight request.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() {
				c.logger.Warnf("relay read failed:%v", err)
				c.remoteTeardown(conn)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.logger.Debugf("relay receive:%v", string(data))
		if err := c.ackRelayMessage(); err != nil {
			c.logger.Warnf("ack relay message:%v", err)
		}
		msg, err := newWCMessageFromBytes(data)
		if err != nil {
			continue
		}
		payload, err := c.decryptJSONRpc(msg)
		if err != nil {
			c.logger.Warnf("decrypt relay payload:%v", err)
			continue
		}
		if sessionTeardown(payload) {
			c.logger.Warnf("session closed from request %v", payload)
			c.remoteTeardown(conn)
			return
		}
		select {
		case c.responses <- payload:
		default:
			c.logger.Warnf("dropping relay payload, no request in flight:%v", payload)
		}
	}
}

func (c *Client) remoteTeardown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	c.session = nil
	onDeleted := c.handlers.OnSessionDeleted
	c.mu.Unlock()
	c.closing.Store(true)
	conn.Close()
	if onDeleted != nil {
		onDeleted()
	}
}

// sessionTeardown reports whether the payload is a session update that
// revokes approval.
func sessionTeardown(jsonRpc string) bool {
	method := gjson.Get(jsonRpc, "method").String()
	if method != methodSessionUpdate {
		return false
	}
	params := gjson.Get(jsonRpc, "params").Array()
	if len(params) == 0 {
		return false
	}
	approved := params[0].Get("approved")
	if !approved.Exists() {
		return false
	}
	return !approved.Bool()
}

// accountAddress strips a CAIP chain prefix such as "neo3:mainnet:".
func accountAddress(account string) string {
	for i := len(account) - 1; i >= 0; i-- {
		if account[i] == ':' {
			return account[i+1:]
		}
	}
	return account
}

func (c *Client) subscribeTopic(topic string) error {
	msg := wcMessage{
		Topic:   topic,
		Type:    messageTypeSub,
		Payload: "",
		Silent:  true,
	}
	c.logger.Debugf("subscribe topic:%v", string(msg.Marshal()))
	return c.send(msg.Marshal())
}

func (c *Client) ackRelayMessage() error {
	msg := wcMessage{
		Topic:   c.clientID,
		Type:    messageTypeAck,
		Payload: "",
		Silent:  true,
	}
	return c.send(msg.Marshal())
}

func (c *Client) send(payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("relay connection not established")
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.WrapAndReport(err, "write relay message")
	}
	return nil
}

// readRelayPayload reads one relay message synchronously. Only used for
// the pairing handshake, before the read loop starts. Cancelling ctx
// aborts the blocked read through an expired deadline.
func (c *Client) readRelayPayload(ctx context.Context) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return "", errors.WrapAndReport(err, "set relay read timeout")
	}
	defer conn.SetReadDeadline(time.Time{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "await pairing approval")
		}
		return "", errors.WrapAndReport(err, "read session response")
	}
	switch msgType {
	case websocket.TextMessage:
		c.logger.Debugf("relay receive:%v", string(data))
		if err := c.ackRelayMessage(); err != nil {
			return "", err
		}
		msg, err := newWCMessageFromBytes(data)
		if err != nil {
			return "", err
		}
		payload, err := c.decryptJSONRpc(msg)
		if err != nil {
			return "", err
		}
		if sessionTeardown(payload) {
			return "", errSessionClosed
		}
		return payload, nil
	case websocket.CloseMessage:
		return "", errSessionClosed
	default:
		return "", errors.NewWithReport("unsupported relay message type")
	}
}

func (c *Client) encryptJSONRpc(jsonRpc string) (*wcMessagePayload, error) {
	iv, err := generateRandomBytes(128 / 8)
	if err != nil {
		return nil, errors.WrapAndReport(err, "generate random bytes")
	}
	data, err := aes256Encrypt([]byte(jsonRpc), c.encryptionKey, iv)
	if err != nil {
		return nil, err
	}
	unsigned := append(data, iv...)
	mac := hmacSha256(unsigned, c.encryptionKey)
	msg := &wcMessagePayload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(mac),
	}
	return msg, nil
}

func (c *Client) decryptJSONRpc(msg *wcMessage) (string, error) {
	mp, err := newWCMessagePayloadFromBytes([]byte(msg.Payload))
	if err != nil {
		return "", err
	}
	iv, err := hex.DecodeString(mp.IV)
	if err != nil {
		return "", errors.WrapAndReport(err, "decode iv hex")
	}
	cipherText, err := hex.DecodeString(mp.Data)
	if err != nil {
		return "", errors.WrapAndReport(err, "decode cipher hex")
	}
	unsigned := append(cipherText, iv...)
	mac := hex.EncodeToString(hmacSha256(unsigned, c.encryptionKey))
	if mac != mp.Hmac {
		return "", errors.NewWithReport("inconsistent relay message hmac")
	}
	data, err := aes256Decrypt(cipherText, c.encryptionKey, iv)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
