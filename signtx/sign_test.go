package signtx_test

import (
	"context"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
	"github.com/shiftcrypto/bitbox02-signtx/internal/nativebtc"
	"github.com/shiftcrypto/bitbox02-signtx/signtx"
	"github.com/shiftcrypto/bitbox02-signtx/wire"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"
)

// demoHost drives a full Sign session end to end, generating one
// deterministic input and one change output per call, with knobs for the
// scenarios of spec.md §8. It is a separate copy of the same
// legacy-prevtx/host-channel plumbing as cmd/signtxd's host.go.
type demoHost struct {
	coin        signtx.Coin
	numInputs   uint32
	locktime    uint32
	sequence    uint32
	antiklepto  bool
	wrongVariant bool

	keypath []uint32
	pkh     []byte
}

func newDemoHost() *demoHost {
	return &demoHost{
		coin:      signtx.CoinBTC,
		numInputs: 2,
		sequence:  0xffffffff,
		keypath:   []uint32{84 + bitcoin.Hardened, 0 + bitcoin.Hardened, 0 + bitcoin.Hardened, 0, 0},
		pkh:       make([]byte, 20),
	}
}

func (h *demoHost) initRequest() *signtx.InitRequest {
	return &signtx.InitRequest{
		Coin:          h.coin,
		ScriptConfigs: []signtx.ScriptConfig{{KeypathAccount: h.keypath[:3]}},
		Version:       2,
		NumInputs:     h.numInputs,
		NumOutputs:    2,
		Locktime:      h.locktime,
	}
}

func (h *demoHost) prevValue(i uint32) uint64 {
	return 100000 + uint64(i)*1000
}

func (h *demoHost) prevScript() []byte {
	s := []byte{0x76, 0xa9, 0x14}
	s = append(s, h.pkh...)
	return append(s, 0x88, 0xac)
}

// prevTxHash computes the txid of the deterministic 1-in-1-out legacy
// transaction this host claims as input i's previous transaction.
func (h *demoHost) prevTxHash(i uint32) bitcoin.Hash32 {
	hasher := sha256.New()
	writeLE32(hasher, 1)
	wire.WriteVarInt(hasher, 0, 1)
	var nullHash bitcoin.Hash32
	hasher.Write(nullHash[:])
	writeLE32(hasher, 0xffffffff)
	wire.WriteVarInt(hasher, 0, 1)
	hasher.Write([]byte{0x00})
	writeLE32(hasher, 0xffffffff)
	wire.WriteVarInt(hasher, 0, 1)
	writeLE64(hasher, h.prevValue(i))
	script := h.prevScript()
	wire.WriteVarInt(hasher, 0, uint64(len(script)))
	hasher.Write(script)
	writeLE32(hasher, 0)

	inner := hasher.Sum(nil)
	sum := sha256.Sum256(inner)
	return bitcoin.Hash32(sum)
}

func (h *demoHost) Exchange(ctx context.Context, next *signtx.NextResponse) (*signtx.HostRequest, error) {
	switch next.Type {
	case signtx.NextTypeInput:
		seq := h.sequence
		if next.Index != 0 {
			seq = 0xffffffff
		}
		var commitment *bitcoin.Hash32
		if h.antiklepto {
			c := bitcoin.Hash32(sha256.Sum256(hostNonce(next.Index)))
			commitment = &c
		}
		return &signtx.HostRequest{Type: signtx.HostRequestInput, Input: &signtx.InputRequest{
			PrevOutHash:         h.prevTxHash(next.Index),
			PrevOutIndex:        0,
			PrevOutValue:        h.prevValue(next.Index),
			Sequence:            seq,
			Keypath:             h.keypath,
			ScriptConfigIndex:   0,
			HostNonceCommitment: commitment,
		}}, nil

	case signtx.NextTypeOutput:
		if next.Index == 1 {
			return &signtx.HostRequest{Type: signtx.HostRequestOutput, Output: &signtx.OutputRequest{
				Ours: true, Type: signtx.OutputTypeP2WPKH, Value: 10000,
				Payload: h.pkh, Keypath: h.keypath, ScriptConfigIndex: 0,
			}}, nil
		}
		return &signtx.HostRequest{Type: signtx.HostRequestOutput, Output: &signtx.OutputRequest{
			Type: signtx.OutputTypeP2WPKH, Value: 50000, Payload: h.pkh,
		}}, nil

	case signtx.NextTypePrevtxInit:
		if h.wrongVariant {
			return &signtx.HostRequest{Type: signtx.HostRequestInput, Input: &signtx.InputRequest{}}, nil
		}
		return &signtx.HostRequest{Type: signtx.HostRequestPrevtxInit, PrevtxInit: &signtx.PrevTxInit{
			Version: 1, NumInputs: 1, NumOutputs: 1, Locktime: 0,
		}}, nil

	case signtx.NextTypePrevtxInput:
		var nullHash bitcoin.Hash32
		return &signtx.HostRequest{Type: signtx.HostRequestPrevtxInput, PrevtxInput: &signtx.PrevTxInput{
			PrevOutHash: nullHash, PrevOutIndex: 0xffffffff, SignatureScript: []byte{0x00}, Sequence: 0xffffffff,
		}}, nil

	case signtx.NextTypePrevtxOutput:
		return &signtx.HostRequest{Type: signtx.HostRequestPrevtxOutput, PrevtxOutput: &signtx.PrevTxOutput{
			Value: h.prevValue(next.Index), PubkeyScript: h.prevScript(),
		}}, nil

	case signtx.NextTypeHostNonce:
		nonce := hostNonce(next.Index)
		return &signtx.HostRequest{Type: signtx.HostRequestAntikleptoSignature, AntikleptoHostNonce: &signtx.AntikleptoHostNonce{
			HostNonce: nonce,
		}}, nil

	case signtx.NextTypeDone:
		return &signtx.HostRequest{}, nil
	}
	return nil, signtx.ErrInvalidState
}

func hostNonce(i uint32) []byte {
	sum := sha256.Sum256([]byte{byte(i), 'h', 'o', 's', 't'})
	return sum[:]
}

func writeLE32(w interface{ Write([]byte) (int, error) }, v uint32) {
	w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func writeLE64(w interface{ Write([]byte) (int, error) }, v uint64) {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	w.Write(b)
}

func newTestApp(t *testing.T) (*nativebtc.Keystore, *nativebtc.AutoUI, *nativebtc.ScreenStack, *nativebtc.App) {
	t.Helper()
	keystore, err := nativebtc.NewKeystore([]byte("deterministic test seed, byte-stable across runs"))
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	ui := nativebtc.NewAutoUI()
	screen := nativebtc.NewScreenStack()
	app := nativebtc.NewApp(keystore, ui)
	return keystore, ui, screen, app
}

// S1: a valid 2-input transaction signs without error and shows the
// "Transaction\nconfirmed" toast.
func TestSignHappyPathBTC(t *testing.T) {
	host := newDemoHost()
	keystore, _, screen, app := newTestApp(t)

	err := signtx.Sign(context.Background(), host.initRequest(), host, keystore, app, screen, screen)
	if err != nil {
		t.Fatalf("Sign returned %v, want nil\nscreen events: %s", err, spew.Sdump(screen.Events()))
	}

	statuses := screen.Statuses()
	if len(statuses) == 0 || statuses[0] != "Transaction\nconfirmed" {
		t.Fatalf("Statuses = %v, want first entry to be the confirmed toast", statuses)
	}
}

// Running Sign twice against the same fixed-seed keystore must produce the
// same signature for input 0, i.e. the pass-2 signature is deterministic
// (S1's "byte-stable across runs" requirement).
func TestSignIsDeterministicAcrossRuns(t *testing.T) {
	runOnce := func() []byte {
		host := newDemoHost()
		keystore, err := nativebtc.NewKeystore([]byte("deterministic test seed, byte-stable across runs"))
		if err != nil {
			t.Fatalf("NewKeystore: %v", err)
		}
		ui := nativebtc.NewAutoUI()
		app := nativebtc.NewApp(keystore, ui)

		var captured []byte
		capture := &capturingHost{demoHost: host, onSignature: func(sig []byte) {
			if captured == nil {
				captured = append([]byte(nil), sig...)
			}
		}}
		if err := signtx.Sign(context.Background(), host.initRequest(), capture, keystore, app, nativebtc.NewScreenStack(), nativebtc.NewScreenStack()); err != nil {
			t.Fatalf("Sign: %v", err)
		}
		return captured
	}

	first := runOnce()
	second := runOnce()
	if len(first) != 64 {
		t.Fatalf("signature length = %d, want 64", len(first))
	}
	if diff := deep.Equal(first, second); diff != nil {
		t.Fatalf("signature not stable across runs: %v\n%s\n%s", diff, spew.Sdump(first), spew.Sdump(second))
	}
}

// capturingHost wraps demoHost and records the first staged signature it
// observes on a NextResponse, letting tests inspect a value the signtx.UI
// surface never otherwise exposes.
type capturingHost struct {
	*demoHost
	onSignature func([]byte)
}

func (c *capturingHost) Exchange(ctx context.Context, next *signtx.NextResponse) (*signtx.HostRequest, error) {
	if next.HasSignature && c.onSignature != nil {
		c.onSignature(next.Signature)
	}
	return c.demoHost.Exchange(ctx, next)
}

// S3: a flipped prev_out_hash must fail the whole session with InvalidInput.
func TestSignRejectsPrevTxHashMismatch(t *testing.T) {
	host := newDemoHost()
	keystore, _, screen, app := newTestApp(t)
	host.numInputs = 1

	corrupting := &corruptingHost{demoHost: host}
	err := signtx.Sign(context.Background(), host.initRequest(), corrupting, keystore, app, screen, screen)
	if !isErrorCode(err, signtx.ErrorCodeInvalidInput) {
		t.Fatalf("Sign error = %v, want InvalidInput", err)
	}
}

type corruptingHost struct {
	*demoHost
}

func (c *corruptingHost) Exchange(ctx context.Context, next *signtx.NextResponse) (*signtx.HostRequest, error) {
	req, err := c.demoHost.Exchange(ctx, next)
	if err != nil {
		return nil, err
	}
	if req.Type == signtx.HostRequestInput {
		req.Input.PrevOutHash[0] ^= 0xff
	}
	return req, nil
}

// S7: a wrong-variant reply to PrevtxInit must fail with InvalidState.
func TestSignRejectsWrongVariant(t *testing.T) {
	host := newDemoHost()
	host.wrongVariant = true
	keystore, _, screen, app := newTestApp(t)

	err := signtx.Sign(context.Background(), host.initRequest(), host, keystore, app, screen, screen)
	if !isErrorCode(err, signtx.ErrorCodeInvalidState) {
		t.Fatalf("Sign error = %v, want InvalidState", err)
	}
}

// S5: a nonzero locktime with a pre-final-sequence input drives an RBF
// confirmation dialog with the exact body text; declining aborts.
func TestSignLocktimeRBFConfirmationDeclined(t *testing.T) {
	host := newDemoHost()
	host.locktime = 10
	host.sequence = 0xFFFFFFFF - 2
	keystore, ui, screen, app := newTestApp(t)
	declining := &declineLocktimeUI{AutoUI: ui}
	app = nativebtc.NewApp(keystore, declining)

	err := signtx.Sign(context.Background(), host.initRequest(), host, keystore, app, screen, screen)
	if !isErrorCode(err, signtx.ErrorCodeUserAbort) {
		t.Fatalf("Sign error = %v, want UserAbort", err)
	}

	prompts := ui.Prompts()
	last := prompts[len(prompts)-1]
	want := "Locktime on block:\n10\nTransaction is RBF"
	if last != want {
		t.Fatalf("last confirmation prompt = %q, want %q", last, want)
	}

	statuses := screen.Statuses()
	if len(statuses) == 0 || statuses[len(statuses)-1] != "Transaction canceled" {
		t.Fatalf("Statuses = %v, want a trailing cancellation toast", statuses)
	}
}

// declineLocktimeUI records every prompt through the wrapped AutoUI but
// declines only the locktime/RBF dialog, accepting all the others.
type declineLocktimeUI struct{ *nativebtc.AutoUI }

func (u *declineLocktimeUI) Confirm(ctx context.Context, text string) bool {
	u.AutoUI.Confirm(ctx, text)
	return !strings.HasPrefix(text, "Locktime on block:")
}

func TestSignLocktimeRBFConfirmationAccepted(t *testing.T) {
	host := newDemoHost()
	host.locktime = 10
	host.sequence = 0xFFFFFFFF - 2
	keystore, _, screen, app := newTestApp(t)

	if err := signtx.Sign(context.Background(), host.initRequest(), host, keystore, app, screen, screen); err != nil {
		t.Fatalf("Sign: %v", err)
	}
}

// S6: anti-klepto armed inputs drive one extra HostNonce round-trip per
// input and still complete with a final signature each.
func TestSignAntiKlepto(t *testing.T) {
	host := newDemoHost()
	host.antiklepto = true
	keystore, _, screen, app := newTestApp(t)

	if err := signtx.Sign(context.Background(), host.initRequest(), host, keystore, app, screen, screen); err != nil {
		t.Fatalf("Sign: %v", err)
	}
}

// Boundary: a locked keystore at entry fails immediately with InvalidState
// and never drives any host round-trip.
func TestSignRejectsLockedKeystore(t *testing.T) {
	host := newDemoHost()
	keystore, _, _, app := newTestApp(t)
	keystore.Lock()

	err := signtx.Sign(context.Background(), host.initRequest(), &neverCalledHost{t}, keystore, app, nativebtc.NewScreenStack(), nativebtc.NewScreenStack())
	if !isErrorCode(err, signtx.ErrorCodeInvalidState) {
		t.Fatalf("Sign error = %v, want InvalidState", err)
	}
}

type neverCalledHost struct{ t *testing.T }

func (h *neverCalledHost) Exchange(ctx context.Context, next *signtx.NextResponse) (*signtx.HostRequest, error) {
	h.t.Fatal("host should never be reached when the keystore is locked")
	return nil, nil
}

func isErrorCode(err error, code int) bool {
	return signtx.IsErrorCode(err, code)
}
