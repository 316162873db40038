package nativebtc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
	"github.com/shiftcrypto/bitbox02-signtx/signtx"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

var (
	curveS256      = btcec.S256()
	curveS256N     = curveS256.Params().N
	curveHalfOrder = new(big.Int).Rsh(curveS256N, 1)
)

// maxSequence is the lowest input sequence value SignInputPass1 accepts
// (0xFFFFFFFD, 0xFFFFFFFE or the final 0xFFFFFFFF); any lower value is
// rejected as invalid input.
const maxSequence = 0xFFFFFFFF - 2

// maxLocktime is the boundary past which a locktime value is interpreted as
// a Unix timestamp rather than a block height, and this device rejects it
// as out of range (spec.md §3, §8).
const maxLocktime = 500_000_000

// App is the concrete signtx.AppBTC the orchestrator drives in tests and the
// demo daemon. It is grounded on the donor txbuilder package's sign.go
// (pass accumulation, per-input signing) and this package's sigHashCache,
// plus original_source/signtx.rs for the confirmation dialog text and
// RBF/change-output rules the distilled spec.md only references by name.
type App struct {
	keystore *Keystore
	ui       UI

	init   *signtx.InitRequest
	cache  *sigHashCache
	inputs []txInput
	total  uint64

	outputs     []txOutput
	outputTotal uint64
	changeCount int

	antiklepto *antikleptoState
}

type antikleptoState struct {
	input      signtx.InputRequest
	scriptCode []byte
	value      uint64
	index      int
	deviceNonce *big.Int
}

// NewApp builds an App bound to keystore and ui. ui is the same UI the
// orchestrator drives for progress/empty screens; SignOutput additionally
// drives it directly for per-output confirmation dialogs.
func NewApp(keystore *Keystore, ui UI) *App {
	return &App{keystore: keystore, ui: ui}
}

// SignInit validates the init descriptor and allocates pass-1 state.
func (a *App) SignInit(ctx context.Context, init *signtx.InitRequest) error {
	if _, ok := coins[init.Coin]; !ok {
		return signtx.ErrInvalidInput
	}
	if init.Version != 1 && init.Version != 2 {
		return signtx.ErrInvalidInput
	}
	if init.Locktime >= maxLocktime {
		return signtx.ErrInvalidInput
	}
	if init.NumInputs == 0 || init.NumOutputs == 0 {
		return signtx.ErrInvalidInput
	}
	if len(init.ScriptConfigs) == 0 {
		return signtx.ErrInvalidInput
	}

	a.init = init
	a.cache = &sigHashCache{}
	a.inputs = make([]txInput, 0, init.NumInputs)
	a.outputs = make([]txOutput, 0, init.NumOutputs)
	a.total = 0
	a.outputTotal = 0
	a.changeCount = 0
	a.antiklepto = nil
	return nil
}

// SignInputPass1 records this input's outpoint and sequence for the BIP143
// hashPrevouts and hashSequence pre-commitments and adds its value to the
// running total input value.
func (a *App) SignInputPass1(ctx context.Context, input *signtx.InputRequest, last bool) error {
	if input.Sequence < maxSequence {
		return signtx.ErrInvalidInput
	}
	if int(input.ScriptConfigIndex) >= len(a.init.ScriptConfigs) {
		return signtx.ErrInvalidInput
	}

	a.inputs = append(a.inputs, txInput{
		prevOutHash:  input.PrevOutHash,
		prevOutIndex: input.PrevOutIndex,
		sequence:     input.Sequence,
	})
	a.total += input.PrevOutValue
	return nil
}

// SignOutput drives the per-output recipient/change confirmation, and on the
// last output the aggregate total+fee and locktime/RBF confirmation, exactly
// following original_source/signtx.rs's dialog ordering and text.
func (a *App) SignOutput(ctx context.Context, output *signtx.OutputRequest, last bool) error {
	if output.Value == 0 {
		return signtx.ErrInvalidInput
	}

	a.outputs = append(a.outputs, txOutput{value: output.Value, pubkeyScript: a.lockingScript(output)})
	a.outputTotal += output.Value

	if output.Ours {
		a.changeCount++
	} else {
		addr, err := renderAddress(a.init.Coin, output.Type, output.Payload)
		if err != nil {
			return errors.Wrap(err, "render recipient address")
		}
		text := fmt.Sprintf("%s\n%s", formatAmount(output.Value, a.init.Coin), addr)
		if !a.ui.Confirm(ctx, text) {
			return signtx.ErrUserAbort
		}
	}

	if !last {
		return nil
	}

	if a.changeCount > 1 {
		text := fmt.Sprintf("There are %d\nchange outputs.\nProceed?", a.changeCount)
		if !a.ui.Confirm(ctx, text) {
			return signtx.ErrUserAbort
		}
	}

	fee := a.total - a.outputTotal
	totalText := fmt.Sprintf("%s\nFee: %s", formatAmount(a.outputTotal, a.init.Coin), formatAmount(fee, a.init.Coin))
	if !a.ui.Confirm(ctx, totalText) {
		return signtx.ErrUserAbort
	}

	if a.init.Locktime != 0 {
		rbf := "not RBF"
		for _, in := range a.inputs {
			if in.sequence < 0xFFFFFFFF-1 {
				rbf = "RBF"
				break
			}
		}
		text := fmt.Sprintf("Locktime on block:\n%d\nTransaction is %s", a.init.Locktime, rbf)
		if !a.ui.Confirm(ctx, text) {
			return signtx.ErrUserAbort
		}
	}

	return nil
}

// lockingScript reconstructs the output's pubkey/witness script from its
// classified payload, needed to feed sigHashCache.HashOutputs.
func (a *App) lockingScript(output *signtx.OutputRequest) []byte {
	switch output.Type {
	case signtx.OutputTypeP2WPKH:
		return append([]byte{0x00, 0x14}, output.Payload...)
	case signtx.OutputTypeP2WSH:
		return append([]byte{0x00, 0x20}, output.Payload...)
	case signtx.OutputTypeP2PKH:
		script := make([]byte, 0, 25)
		script = append(script, 0x76, 0xa9, 0x14)
		script = append(script, output.Payload...)
		return append(script, 0x88, 0xac)
	default:
		script := make([]byte, 0, 2+len(output.Payload))
		script = append(script, 0xa9, 0x14)
		return append(append(script, output.Payload...), 0x87)
	}
}

// SignInputPass2 derives the per-input signing key, computes the BIP143
// sighash from the pass-1 precommitments, and signs it. If the input is
// anti-klepto armed, the deterministic nonce and commitment are staged and
// the final signature is withheld until SignAntiklepto completes.
func (a *App) SignInputPass2(ctx context.Context, input *signtx.InputRequest, last bool) ([]byte, *signtx.SignerCommitment, error) {
	key, err := a.keystore.derive(input.Keypath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "derive input key")
	}

	pkh := bitcoin.Hash160(key.PublicKey().Bytes())
	scriptCode := p2wpkhScriptCode(pkh)

	index := int(findInputIndex(a.inputs, input.PrevOutHash, input.PrevOutIndex))
	sighash, err := bip143SigHash(a.init.Version, a.inputs, a.outputs, a.init.Locktime, index, scriptCode, input.PrevOutValue, a.cache)
	if err != nil {
		return nil, nil, errors.Wrap(err, "compute sighash")
	}

	if input.HostNonceCommitment != nil {
		deviceNonce := deterministicNonce(key, sighash)
		commitment := nonceCommitment(deviceNonce)
		a.antiklepto = &antikleptoState{
			input:       *input,
			scriptCode:  scriptCode,
			value:       input.PrevOutValue,
			index:       index,
			deviceNonce: deviceNonce,
		}
		return nil, &commitment, nil
	}

	sig, err := key.Sign(sighash)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sign")
	}
	return compactSignature(sig), nil, nil
}

// SignAntiklepto completes the anti-klepto exchange: it verifies the host's
// revealed nonce against the commitment the host staged in the pass-2
// input, combines it with the device's already-committed nonce, and signs
// with that combined nonce rather than a plain RFC6979 one (spec.md §4.4
// step 3-4). Folding in a nonce contribution the device could not have
// predicted before committing to R' is what makes the commitment binding;
// signing with an independently-derived nonce, as a no-op implementation
// would, defeats the whole point of the sub-protocol.
func (a *App) SignAntiklepto(ctx context.Context, hostNonce []byte) ([]byte, error) {
	if a.antiklepto == nil {
		return nil, signtx.ErrInvalidState
	}
	state := a.antiklepto
	a.antiklepto = nil

	if state.input.HostNonceCommitment == nil {
		return nil, signtx.ErrInvalidState
	}
	gotCommitment := sha256.Sum256(hostNonce)
	if !bytes.Equal(gotCommitment[:], state.input.HostNonceCommitment[:]) {
		return nil, signtx.ErrInvalidInput
	}

	key, err := a.keystore.derive(state.input.Keypath)
	if err != nil {
		return nil, errors.Wrap(err, "derive input key")
	}

	sighash, err := bip143SigHash(a.init.Version, a.inputs, a.outputs, a.init.Locktime, state.index, state.scriptCode, state.value, a.cache)
	if err != nil {
		return nil, errors.Wrap(err, "compute sighash")
	}

	combined := new(big.Int).Add(state.deviceNonce, new(big.Int).SetBytes(hostNonce))
	combined.Mod(combined, curveS256N)

	sig, err := signWithNonce(key, sighash, combined)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	return compactSignature(sig), nil
}

// signWithNonce signs hash for key using the explicit nonce k instead of
// one derived via RFC6979, mirroring bitcoin.Key.Sign's underlying ECDSA
// math (signature = (r, s), r from k*G, s = k^-1(e + r*priv)). Only the
// anti-klepto path needs this: its nonce is the sum of a device and a host
// contribution, which bitcoin.Key.Sign has no way to accept.
func signWithNonce(key bitcoin.Key, hash bitcoin.Hash32, k *big.Int) (bitcoin.Signature, error) {
	if k.Sign() == 0 {
		return bitcoin.Signature{}, errors.New("nonce is zero")
	}

	rx, _ := curveS256.ScalarBaseMult(k.Bytes())
	r := new(big.Int).Mod(rx, curveS256N)
	if r.Sign() == 0 {
		return bitcoin.Signature{}, errors.New("calculated R is zero")
	}

	priv := new(big.Int).SetBytes(key.Number())
	inv := new(big.Int).ModInverse(k, curveS256N)
	e := new(big.Int).SetBytes(hash[:])

	s := new(big.Int).Mul(priv, r)
	s.Add(s, e)
	s.Mul(s, inv)
	s.Mod(s, curveS256N)
	if s.Sign() == 0 {
		return bitcoin.Signature{}, errors.New("calculated S is zero")
	}
	if s.Cmp(curveHalfOrder) == 1 {
		s.Sub(curveS256N, s)
	}

	return bitcoin.Signature{R: *r, S: *s}, nil
}

// SignReset purges all intermediate signing state.
func (a *App) SignReset(ctx context.Context) {
	a.init = nil
	a.cache = nil
	a.inputs = nil
	a.outputs = nil
	a.antiklepto = nil
}

func findInputIndex(inputs []txInput, hash bitcoin.Hash32, index uint32) int {
	for i, in := range inputs {
		if in.prevOutHash == hash && in.prevOutIndex == index {
			return i
		}
	}
	return -1
}

// compactSignature serializes a Signature as fixed-width 64-byte R||S, the
// format the wire protocol expects for a single-recovery-bit-free compact
// signature. bitcoin.Signature only exposes a DER Bytes()/Serialize(); no
// method on it returns this layout, so it is built directly from R and S.
func compactSignature(sig bitcoin.Signature) []byte {
	out := make([]byte, 64)
	rb := sig.R.Bytes()
	sb := sig.S.Bytes()
	copy(out[32-len(rb):32], rb)
	copy(out[64-len(sb):64], sb)
	return out
}

// deterministicNonce derives a per-signature nonce from the signing key and
// sighash, standing in for the device's committed anti-klepto nonce.
func deterministicNonce(key bitcoin.Key, sighash bitcoin.Hash32) *big.Int {
	h := sha256.Sum256(append(key.Bytes(), sighash[:]...))
	return new(big.Int).SetBytes(h[:])
}

// nonceCommitment is SHA256 of the device nonce, the value the host must
// match against its own commitment check (spec.md §4.4 step 1).
func nonceCommitment(nonce *big.Int) signtx.SignerCommitment {
	return sha256.Sum256(nonce.Bytes())
}

// formatAmount renders a satoshi value in the coin's display unit in the
// "13.399999 BTC" style: up to 8 decimal places, trailing zeros trimmed.
func formatAmount(satoshis uint64, coin signtx.Coin) string {
	whole := satoshis / 1e8
	frac := satoshis % 1e8
	s := strings.TrimRight(fmt.Sprintf("%d.%08d", whole, frac), "0")
	s = strings.TrimSuffix(s, ".")
	return fmt.Sprintf("%s %s", s, coin.DisplayUnit())
}
