package signtx

import (
	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
)

// Coin identifies which network a signing session is for. The native side
// renders per-coin display units and address prefixes; the core only
// threads the value through.
type Coin uint8

const (
	CoinBTC Coin = iota
	CoinLTC
)

// DisplayUnit is the suffix the native total/fee confirmation dialog quotes
// amounts in.
func (c Coin) DisplayUnit() string {
	switch c {
	case CoinLTC:
		return "LTC"
	default:
		return "BTC"
	}
}

// ScriptConfig describes one of the keypath-derivation/script templates the
// init descriptor makes available to inputs and change outputs. The exact
// script-config grammar (simple P2WPKH, P2WSH multisig, ...) is validated by
// the native sign_init helper; the core only indexes into this slice.
type ScriptConfig struct {
	KeypathAccount []uint32
}

// InitRequest is the top-level descriptor the host sends once, before any
// input or output is streamed.
type InitRequest struct {
	Coin          Coin
	ScriptConfigs []ScriptConfig
	Version       uint32
	NumInputs     uint32
	NumOutputs    uint32
	Locktime      uint32
}

// InputRequest is streamed once per input, twice (pass 1 and pass 2).
type InputRequest struct {
	PrevOutHash         bitcoin.Hash32
	PrevOutIndex        uint32
	PrevOutValue        uint64
	Sequence            uint32
	Keypath             []uint32
	ScriptConfigIndex   uint32
	HostNonceCommitment *bitcoin.Hash32 // nil unless anti-klepto is armed for this input
}

// PrevTxInit begins the streamed legacy serialization of input i's previous
// transaction.
type PrevTxInit struct {
	Version    uint32
	NumInputs  uint32
	NumOutputs uint32
	Locktime   uint32
}

// PrevTxInput is one legacy input of a previous transaction.
type PrevTxInput struct {
	PrevOutHash    bitcoin.Hash32
	PrevOutIndex   uint32
	SignatureScript []byte
	Sequence       uint32
}

// PrevTxOutput is one legacy output of a previous transaction.
type PrevTxOutput struct {
	Value       uint64
	PubkeyScript []byte
}

// OutputType classifies an output for the native confirmation UI. The
// address-rendering/classification engine itself is out of scope for this
// module; the host supplies the already-classified type and payload.
type OutputType uint8

const (
	OutputTypeP2PKH OutputType = iota
	OutputTypeP2SH
	OutputTypeP2WPKH
	OutputTypeP2WSH
)

// OutputRequest is streamed once per output.
type OutputRequest struct {
	Ours              bool
	Type              OutputType
	Value             uint64
	Payload           []byte
	Keypath           []uint32 // only meaningful if Ours
	ScriptConfigIndex uint32   // only meaningful if Ours
}

// NextType enumerates the wire shapes of spec §6's SignNext hint.
type NextType uint8

const (
	NextTypeInput NextType = iota
	NextTypeOutput
	NextTypePrevtxInit
	NextTypePrevtxInput
	NextTypePrevtxOutput
	NextTypeHostNonce
	NextTypeDone
)

// NextResponse is the single piece of session-local mutable state that
// crosses every suspension point (spec.md §3, §9). It is created once at
// orchestrator entry, mutated before each host round-trip by the typed
// accessor that is about to call exchange, and reset to its zero transient
// fields immediately after the host request is received so that a
// signature or commitment is delivered at most once.
type NextResponse struct {
	Type                       NextType
	Index                      uint32
	PrevIndex                  uint32
	HasSignature               bool
	Signature                  []byte
	AntiKleptoSignerCommitment *bitcoin.Hash32
	Wrap                       bool
}

// resetTransient zeroes the fields that must be delivered at most once,
// leaving Type/Index/PrevIndex/Wrap - which describe the *next* hint being
// composed - untouched.
func (n *NextResponse) resetTransient() {
	n.HasSignature = false
	n.Signature = nil
	n.AntiKleptoSignerCommitment = nil
}

// HostRequestType enumerates the variants the host can reply with.
type HostRequestType uint8

const (
	HostRequestInit HostRequestType = iota
	HostRequestInput
	HostRequestOutput
	HostRequestPrevtxInit
	HostRequestPrevtxInput
	HostRequestPrevtxOutput
	HostRequestAntikleptoSignature
)

// HostRequest is the demultiplexed request the framer hands back after a
// round-trip. Exactly one of the pointer fields is non-nil, matching
// Type. This mirrors the donor's preference (wire.TxIn/TxOut) for explicit
// discriminated structs over a bare interface{} payload.
type HostRequest struct {
	Type HostRequestType

	Init             *InitRequest
	Input            *InputRequest
	Output           *OutputRequest
	PrevtxInit       *PrevTxInit
	PrevtxInput      *PrevTxInput
	PrevtxOutput     *PrevTxOutput
	AntikleptoHostNonce *AntikleptoHostNonce
}

// AntikleptoHostNonce is the host's reply in the anti-klepto sub-protocol,
// carrying the host's full nonce (spec.md §4.4 step 3).
type AntikleptoHostNonce struct {
	HostNonce []byte
}
