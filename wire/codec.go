package wire

import (
	"encoding/json"
	"fmt"
)

// envelope is the bridge framing: the wire type tag plus the JSON-encoded
// message body. The binary protobuf framing of the on-device transport is
// out of scope; the bridge speaks this envelope instead.
type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal encodes a message into its bridge envelope.
func Marshal(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message payload: %w", err)
	}
	return json.Marshal(envelope{Type: msg.WireType(), Payload: payload})
}

// Unmarshal decodes a bridge envelope into its typed message.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding message envelope: %w", err)
	}
	return decodeByType(env.Type, env.Payload)
}

func decode[T Message](payload []byte) (Message, error) {
	var msg T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("decoding message payload: %w", err)
		}
	}
	return msg, nil
}

func decodeByType(t MessageType, payload []byte) (Message, error) {
	switch t {
	case TypeInitialize:
		return decode[Initialize](payload)
	case TypeGetFeatures:
		return decode[GetFeatures](payload)
	case TypeFeatures:
		return decode[Features](payload)
	case TypeSuccess:
		return decode[Success](payload)
	case TypeFailure:
		return decode[Failure](payload)
	case TypePing:
		return decode[Ping](payload)
	case TypeCancel:
		return decode[Cancel](payload)
	case TypeLockDevice:
		return decode[LockDevice](payload)
	case TypeWipeDevice:
		return decode[WipeDevice](payload)
	case TypeEndSession:
		return decode[EndSession](payload)
	case TypeSetBusy:
		return decode[SetBusy](payload)
	case TypeButtonRequest:
		return decode[ButtonRequest](payload)
	case TypeButtonAck:
		return decode[ButtonAck](payload)
	case TypePinMatrixRequest:
		return decode[PinMatrixRequest](payload)
	case TypePinMatrixAck:
		return decode[PinMatrixAck](payload)
	case TypePassphraseRequest:
		return decode[PassphraseRequest](payload)
	case TypePassphraseAck:
		return decode[PassphraseAck](payload)
	case TypeAuthorizeCoinJoin:
		return decode[AuthorizeCoinJoin](payload)
	case TypeDoPreauthorized:
		return decode[DoPreauthorized](payload)
	case TypePreauthorizedRequest:
		return decode[PreauthorizedRequest](payload)
	case TypeCancelAuthorization:
		return decode[CancelAuthorization](payload)
	case TypeUnlockPath:
		return decode[UnlockPath](payload)
	case TypeUnlockedPathRequest:
		return decode[UnlockedPathRequest](payload)
	case TypeGetAddress:
		return decode[GetAddress](payload)
	case TypeAddress:
		return decode[Address](payload)
	case TypeGetPublicKey:
		return decode[GetPublicKey](payload)
	case TypePublicKey:
		return decode[PublicKey](payload)
	case TypeSignTx:
		return decode[SignTx](payload)
	case TypeGetOwnershipProof:
		return decode[GetOwnershipProof](payload)
	case TypeOwnershipProof:
		return decode[OwnershipProofSigned](payload)
	}
	return nil, fmt.Errorf("unknown message type %d", t)
}
