package neo

// Contract parameter types accepted by N3 contract invocations.
const (
	ParamAny       = "Any"
	ParamBoolean   = "Boolean"
	ParamInteger   = "Integer"
	ParamByteArray = "ByteArray"
	ParamString    = "String"
	ParamHash160   = "Hash160"
	ParamHash256   = "Hash256"
	ParamPublicKey = "PublicKey"
	ParamArray     = "Array"
)

// Witness scopes restricting where a signer's witness is valid.
const (
	ScopeNone            = "None"
	ScopeCalledByEntry   = "CalledByEntry"
	ScopeCustomContracts = "CustomContracts"
	ScopeCustomGroups    = "CustomGroups"
	ScopeGlobal          = "Global"
)

// ContractParameter is one typed argument of a contract operation.
type ContractParameter struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Signer scopes one account's witness for an invocation.
type Signer struct {
	Account          string   `json:"account"`
	Scopes           string   `json:"scopes"`
	AllowedContracts []string `json:"allowedContracts,omitempty"`
	AllowedGroups    []string `json:"allowedGroups,omitempty"`
}

// ContractInvocation addresses one operation of one contract.
type ContractInvocation struct {
	ScriptHash  string              `json:"scriptHash"`
	Operation   string              `json:"operation"`
	Args        []ContractParameter `json:"args,omitempty"`
	AbortOnFail bool                `json:"abortOnFail,omitempty"`
}

// InvokeRequest is a single-invocation request. Only the first signer is
// forwarded to the wallet.
type InvokeRequest struct {
	ContractInvocation
	Signers []Signer `json:"signers,omitempty"`
}

// MultiInvokeRequest batches invocations sharing one signer list.
type MultiInvokeRequest struct {
	Invocations []ContractInvocation `json:"invocations"`
	Signers     []Signer             `json:"signers,omitempty"`
}

// StackItem is one value on the VM result stack.
type StackItem struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value,omitempty"`
}

// Notification is an event emitted by a contract during execution.
type Notification struct {
	Contract  string     `json:"contract"`
	EventName string     `json:"eventname"`
	State     *StackItem `json:"state,omitempty"`
}

// InvokeError is the error object attached to a failed remote execution.
type InvokeError struct {
	Message string `json:"message"`
	Code    int64  `json:"code"`
}

// StateHalt is the VM terminal state marking a successful execution.
// Any other state denotes failure.
const StateHalt = "HALT"

// InvocationResponse is the raw execution payload returned by the wallet
// for both simulated and signed invocations.
type InvocationResponse struct {
	Script        string         `json:"script,omitempty"`
	State         string         `json:"state"`
	GasConsumed   string         `json:"gasconsumed,omitempty"`
	Exception     string         `json:"exception,omitempty"`
	Stack         []StackItem    `json:"stack,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	// TxID is set for signed invocations relayed to the network.
	TxID  string       `json:"txid,omitempty"`
	Error *InvokeError `json:"error,omitempty"`
}

// Halted reports whether the execution reached the HALT terminal state.
func (r *InvocationResponse) Halted() bool {
	return r != nil && r.State == StateHalt
}

// ResultStatus tags an InvocationResult.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// InvocationResult is the adapter-local result union: success carries the
// raw execution payload verbatim, error carries message and code.
type InvocationResult struct {
	Status  ResultStatus        `json:"status"`
	Data    *InvocationResponse `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Code    int64               `json:"code,omitempty"`
}

// NewInvocationResult derives the result union from the raw execution
// payload: HALT maps to success with the payload attached, anything else
// to error with the message and code of the response error when present.
func NewInvocationResult(resp *InvocationResponse) *InvocationResult {
	if resp.Halted() {
		return &InvocationResult{
			Status: StatusSuccess,
			Data:   resp,
		}
	}
	result := &InvocationResult{
		Status: StatusError,
	}
	if resp != nil && resp.Error != nil {
		result.Message = resp.Error.Message
		result.Code = resp.Error.Code
	}
	return result
}
