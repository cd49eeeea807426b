// Package wire defines the decoded message model shared by the dispatcher
// and all request handlers: the message-type enumeration, the handler
// registry, the per-request Context with its suspension points, and the
// typed failure codes reported to the host.
package wire

// MessageType tags every decoded message with its wire identity.
type MessageType uint16

const (
	TypeInitialize           MessageType = 0
	TypePing                 MessageType = 1
	TypeSuccess              MessageType = 2
	TypeFailure              MessageType = 3
	TypeWipeDevice           MessageType = 5
	TypeGetPublicKey         MessageType = 11
	TypePublicKey            MessageType = 12
	TypeSignTx               MessageType = 15
	TypeSetBusy              MessageType = 16
	TypeFeatures             MessageType = 17
	TypePinMatrixRequest     MessageType = 18
	TypePinMatrixAck         MessageType = 19
	TypeCancel               MessageType = 20
	TypeLockDevice           MessageType = 24
	TypeButtonRequest        MessageType = 26
	TypeButtonAck            MessageType = 27
	TypeGetAddress           MessageType = 29
	TypeAddress              MessageType = 30
	TypeAuthorizeCoinJoin    MessageType = 51
	TypeGetFeatures          MessageType = 55
	TypeGetOwnershipProof    MessageType = 49
	TypeOwnershipProof       MessageType = 50
	TypePassphraseRequest    MessageType = 41
	TypePassphraseAck        MessageType = 42
	TypeEndSession           MessageType = 83
	TypeDoPreauthorized      MessageType = 84
	TypePreauthorizedRequest MessageType = 85
	TypeCancelAuthorization  MessageType = 86
	TypeUnlockPath           MessageType = 93
	TypeUnlockedPathRequest  MessageType = 94
)

// Interface identifies the physical transport a request arrived on.
type Interface uint8

const (
	IfaceMain Interface = iota
	IfaceDebug
)

// Message is any decoded protocol message.
type Message interface {
	WireType() MessageType
}

// Initialize starts or resumes a session.
type Initialize struct {
	SessionID     []byte `json:"session_id,omitempty"`
	DeriveCardano *bool  `json:"derive_cardano,omitempty"`
}

// GetFeatures requests the device feature report without touching sessions.
type GetFeatures struct{}

// Features is the device feature report.
type Features struct {
	Vendor           string   `json:"vendor"`
	DeviceID         string   `json:"device_id,omitempty"`
	Label            string   `json:"label,omitempty"`
	SessionID        []byte   `json:"session_id,omitempty"`
	Initialized      bool     `json:"initialized"`
	PinProtection    bool     `json:"pin_protection"`
	Unlocked         bool     `json:"unlocked"`
	BusyExpiryMs     uint32   `json:"busy_expiry_ms,omitempty"`
	AutoLockDelayMs  uint32   `json:"auto_lock_delay_ms,omitempty"`
	Capabilities     []string `json:"capabilities,omitempty"`
	PassphraseActive bool     `json:"passphrase_protection,omitempty"`
}

// Success is the generic affirmative response.
type Success struct {
	Message string `json:"message,omitempty"`
}

// Failure reports a typed error to the host.
type Failure struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message,omitempty"`
}

// Ping optionally requires a button confirmation before echoing.
type Ping struct {
	Message          string `json:"message,omitempty"`
	ButtonProtection bool   `json:"button_protection,omitempty"`
}

type Cancel struct{}

type LockDevice struct{}

type WipeDevice struct{}

type EndSession struct{}

// SetBusy marks the device busy for ExpiryMs milliseconds, or clears the
// busy state when ExpiryMs is zero.
type SetBusy struct {
	ExpiryMs uint32 `json:"expiry_ms,omitempty"`
}

// ButtonRequest asks the host to have the user confirm an action.
type ButtonRequest struct {
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type ButtonAck struct{}

// PinMatrixRequest asks the host for the user's PIN.
type PinMatrixRequest struct{}

type PinMatrixAck struct {
	Pin string `json:"pin"`
}

// PassphraseRequest asks the host for the user's passphrase before seed
// derivation.
type PassphraseRequest struct{}

type PassphraseAck struct {
	Passphrase string `json:"passphrase"`
}

// AuthorizeCoinJoin pre-approves participation in CoinJoin rounds run by a
// single coordinator, within the given limits.
type AuthorizeCoinJoin struct {
	Coordinator           string   `json:"coordinator"`
	MaxRounds             uint64   `json:"max_rounds"`
	MaxCoordinatorFeeRate uint64   `json:"max_coordinator_fee_rate"`
	MaxFeePerKvbyte       uint64   `json:"max_fee_per_kvbyte"`
	AddressN              []uint32 `json:"address_n,omitempty"`
	CoinName              string   `json:"coin_name,omitempty"`
}

// DoPreauthorized dispatches one message covered by a pending authorization.
type DoPreauthorized struct{}

// PreauthorizedRequest tells the host to send the preauthorized operation.
type PreauthorizedRequest struct{}

type CancelAuthorization struct{}

// UnlockPath grants access to a sensitive derivation subtree, either by a
// previously issued MAC or by explicit user confirmation.
type UnlockPath struct {
	AddressN []uint32 `json:"address_n"`
	MAC      []byte   `json:"mac,omitempty"`
}

// UnlockedPathRequest carries the issued MAC and tells the host to send the
// follow-up operation.
type UnlockedPathRequest struct {
	MAC []byte `json:"mac,omitempty"`
}

type GetAddress struct {
	AddressN []uint32 `json:"address_n"`
	CoinName string   `json:"coin_name,omitempty"`
}

type Address struct {
	Address string `json:"address"`
}

type GetPublicKey struct {
	AddressN []uint32 `json:"address_n"`
}

type PublicKey struct {
	Node []byte `json:"node"`
}

// SignTx is a stand-in for the transaction signing flow; the trust core only
// cares about its wire identity and the preauthorization context it runs in.
type SignTx struct {
	AddressN []uint32 `json:"address_n,omitempty"`
	CoinName string   `json:"coin_name,omitempty"`
}

type OwnershipProofSigned struct {
	Proof []byte `json:"proof"`
}

// GetOwnershipProof proves control of an input to a CoinJoin coordinator.
type GetOwnershipProof struct {
	AddressN       []uint32 `json:"address_n"`
	CommitmentData []byte   `json:"commitment_data,omitempty"`
}

func (Initialize) WireType() MessageType           { return TypeInitialize }
func (GetFeatures) WireType() MessageType          { return TypeGetFeatures }
func (Features) WireType() MessageType             { return TypeFeatures }
func (Success) WireType() MessageType              { return TypeSuccess }
func (Failure) WireType() MessageType              { return TypeFailure }
func (Ping) WireType() MessageType                 { return TypePing }
func (Cancel) WireType() MessageType               { return TypeCancel }
func (LockDevice) WireType() MessageType           { return TypeLockDevice }
func (WipeDevice) WireType() MessageType           { return TypeWipeDevice }
func (EndSession) WireType() MessageType           { return TypeEndSession }
func (SetBusy) WireType() MessageType              { return TypeSetBusy }
func (ButtonRequest) WireType() MessageType        { return TypeButtonRequest }
func (ButtonAck) WireType() MessageType            { return TypeButtonAck }
func (PinMatrixRequest) WireType() MessageType     { return TypePinMatrixRequest }
func (PinMatrixAck) WireType() MessageType         { return TypePinMatrixAck }
func (PassphraseRequest) WireType() MessageType    { return TypePassphraseRequest }
func (PassphraseAck) WireType() MessageType        { return TypePassphraseAck }
func (AuthorizeCoinJoin) WireType() MessageType    { return TypeAuthorizeCoinJoin }
func (DoPreauthorized) WireType() MessageType      { return TypeDoPreauthorized }
func (PreauthorizedRequest) WireType() MessageType { return TypePreauthorizedRequest }
func (CancelAuthorization) WireType() MessageType  { return TypeCancelAuthorization }
func (UnlockPath) WireType() MessageType           { return TypeUnlockPath }
func (UnlockedPathRequest) WireType() MessageType  { return TypeUnlockedPathRequest }
func (GetAddress) WireType() MessageType           { return TypeGetAddress }
func (Address) WireType() MessageType              { return TypeAddress }
func (GetPublicKey) WireType() MessageType         { return TypeGetPublicKey }
func (PublicKey) WireType() MessageType            { return TypePublicKey }
func (SignTx) WireType() MessageType               { return TypeSignTx }
func (OwnershipProofSigned) WireType() MessageType { return TypeOwnershipProof }
func (GetOwnershipProof) WireType() MessageType    { return TypeGetOwnershipProof }
