package signtx

import (
	"context"
	"io"
)

// Keystore is the native capability that reports whether the device's
// private key material is unlocked. It never leaves the native side.
type Keystore interface {
	IsLocked() bool
}

// SignerCommitment is the anti-klepto commitment R' the device sends the
// host before it learns the host's nonce (spec.md §4.4).
type SignerCommitment = [32]byte

// AppBTC is the native signing engine. Every method is opaque from the
// core's point of view: the core only sequences calls into it in the order
// spec.md mandates and reacts to the returned error kind.
type AppBTC interface {
	// SignInit validates the init descriptor (coin, version, locktime,
	// script-configs, cross-input BIP44 consistency) and allocates
	// pass-1 accumulator state.
	SignInit(ctx context.Context, init *InitRequest) error

	// SignInputPass1 accumulates hashPrevouts/hashSequence/total input
	// value and validates the input's own script-config, sequence, and
	// keypath. last is true on the final input.
	SignInputPass1(ctx context.Context, input *InputRequest, last bool) error

	// SignOutput drives the recipient/change/total+fee/locktime-RBF
	// confirmation UI for output j. last is true on the final output.
	// Returns ErrUserAbort if any dialog was declined.
	SignOutput(ctx context.Context, output *OutputRequest, last bool) error

	// SignInputPass2 computes the BIP143 sighash from the pass-1
	// precommitments and this input record's value, and signs it. last
	// is true on the final input. If the input carries a host nonce
	// commitment, commitment is non-nil and the caller must complete the
	// anti-klepto exchange before the returned signature is final.
	SignInputPass2(ctx context.Context, input *InputRequest, last bool) (signature []byte, commitment *SignerCommitment, err error)

	// SignAntiklepto completes the anti-klepto exchange for the input
	// most recently passed to SignInputPass2, combining the device's
	// nonce with the host's revealed nonce, and returns the final
	// signature.
	SignAntiklepto(ctx context.Context, hostNonce []byte) ([]byte, error)

	// SignReset purges all intermediate signing state. Invoked on every
	// exit path by the cleanup wrapper (spec.md §4.6, invariant 4).
	SignReset(ctx context.Context)
}

// ProgressHandle is a scoped screen-stack acquisition: Close pops it.
type ProgressHandle interface {
	io.Closer
	Set(fraction float32)
}

// UI is the native toolkit surface the orchestrator drives directly (as
// opposed to the UI driven internally by AppBTC.SignOutput).
type UI interface {
	// ProgressCreate pushes a titled progress bar onto the screen stack.
	ProgressCreate(title string) ProgressHandle

	// EmptyCreate pushes a blank placeholder screen, used to mask the
	// wire-latency gap between the last output and the first pass-2
	// input (spec.md §9, "Screen-stack lifetimes").
	EmptyCreate() io.Closer
}

// StatusReporter displays a brief, non-blocking status toast.
type StatusReporter interface {
	Status(ctx context.Context, text string, success bool)
}

// HostChannel is the one suspension point of the whole orchestrator
// (spec.md §5): it sends the given hint and blocks until the host answers.
// The transport framing itself (bare SignNext vs BtcResponse-wrapped
// SignNext, protobuf encoding) is out of scope; HostChannel only has to
// deliver the demultiplexed HostRequest that resulted from the exchange.
type HostChannel interface {
	Exchange(ctx context.Context, next *NextResponse) (*HostRequest, error)
}
