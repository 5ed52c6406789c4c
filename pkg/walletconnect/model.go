package walletconnect

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/team-renaissance/neo-wallet-adapter/pkg/errors"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/log"
)

// wcMessage is the relay envelope: pub/sub/ack on a topic.
type wcMessage struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

const (
	messageTypePub = "pub"
	messageTypeSub = "sub"
	messageTypeAck = "ack"
)

func newWCMessageFromBytes(data []byte) (*wcMessage, error) {
	var msg wcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.WrapAndReport(err, "unmarshal relay message")
	}
	return &msg, nil
}

func (msg *wcMessage) Marshal() []byte {
	bytes, _ := json.Marshal(msg)
	return bytes
}

// wcMessagePayload is the encrypted payload carried inside a pub message:
// AES-256-CBC ciphertext plus an HMAC over ciphertext||iv, hex encoded.
type wcMessagePayload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

func newWCMessagePayloadFromBytes(data []byte) (*wcMessagePayload, error) {
	var payload wcMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.WrapAndReport(err, "unmarshal relay message payload")
	}
	return &payload, nil
}

func (e *wcMessagePayload) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

// peerInfo announces this client in the session handshake.
type peerInfo struct {
	PeerID   string      `json:"peerId"`
	PeerMeta AppMetadata `json:"peerMeta"`
	Chains   []string    `json:"chains,omitempty"`
}

// sessionInfo is the wallet's half of the handshake result.
type sessionInfo struct {
	Approved bool        `json:"approved"`
	ChainID  string      `json:"chainId"`
	Accounts []string    `json:"accounts"`
	PeerID   string      `json:"peerId"`
	PeerMeta AppMetadata `json:"peerMeta"`
}

type jsonRpcRequest struct {
	Id      int64         `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newJSONRpcRequest(method string, params ...interface{}) *jsonRpcRequest {
	r := &jsonRpcRequest{
		Id:      nextPayloadID(),
		JSONRpc: "2.0",
		Method:  method,
		Params:  []interface{}{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

func (e *jsonRpcRequest) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

func (e *jsonRpcRequest) IsSilentPayload() bool {
	return strings.HasPrefix(e.Method, "wc_")
}

var lastPayloadID = atomic.NewInt64(0)

// nextPayloadID is monotonic across concurrent requests so responses can
// be matched back by id.
func nextPayloadID() int64 {
	for {
		id := time.Now().UnixNano() / 1000
		last := lastPayloadID.Load()
		if id <= last {
			id = last + 1
		}
		if lastPayloadID.CAS(last, id) {
			return id
		}
	}
}

// Session handshake and teardown methods of the relay protocol.
const (
	methodSessionRequest = "wc_sessionRequest"
	methodSessionUpdate  = "wc_sessionUpdate"
)

// Invocation methods forwarded to the paired wallet.
const (
	MethodTestInvoke      = "testInvoke"
	MethodMultiTestInvoke = "multiTestInvoke"
	MethodInvokeFunction  = "invokeFunction"
	MethodMultiInvoke     = "multiInvoke"
)
