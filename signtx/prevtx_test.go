package signtx

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
	"github.com/shiftcrypto/bitbox02-signtx/wire"
)

// scriptedHost replies to every NextResponse from a pre-built queue of
// HostRequests, asserting nothing about the hint itself. It is the minimal
// fake used by white-box tests that exercise a single Framer method
// directly rather than a full Sign call.
type scriptedHost struct {
	queue []*HostRequest
	pos   int
}

func (h *scriptedHost) Exchange(ctx context.Context, next *NextResponse) (*HostRequest, error) {
	if h.pos >= len(h.queue) {
		return nil, errors.New("scriptedHost: queue exhausted")
	}
	req := h.queue[h.pos]
	h.pos++
	return req, nil
}

// legacyPrevTx builds the canonical legacy serialization spec.md §4.2/§6
// describes for a single-input, single-output previous transaction, and
// returns both its double-SHA256 txid and the three records a scriptedHost
// would stream to reproduce it (init, one input, one output).
func legacyPrevTx(version uint32, sigScript []byte, sequence uint32, value uint64, pubkeyScript []byte, locktime uint32) (bitcoin.Hash32, *PrevTxInit, *PrevTxInput, *PrevTxOutput) {
	h := sha256.New()
	writeUint32LE(h, version)
	wire.WriteVarInt(h, 0, 1)

	var prevHash bitcoin.Hash32
	h.Write(prevHash[:])
	writeUint32LE(h, 0xffffffff)
	wire.WriteVarInt(h, 0, uint64(len(sigScript)))
	h.Write(sigScript)
	writeUint32LE(h, sequence)

	wire.WriteVarInt(h, 0, 1)
	writeUint64LE(h, value)
	wire.WriteVarInt(h, 0, uint64(len(pubkeyScript)))
	h.Write(pubkeyScript)

	writeUint32LE(h, locktime)

	inner := h.Sum(nil)
	txid := sha256.Sum256(inner)

	return bitcoin.Hash32(txid), &PrevTxInit{Version: version, NumInputs: 1, NumOutputs: 1, Locktime: locktime},
		&PrevTxInput{PrevOutHash: prevHash, PrevOutIndex: 0xffffffff, SignatureScript: sigScript, Sequence: sequence},
		&PrevTxOutput{Value: value, PubkeyScript: pubkeyScript}
}

func newPrevtxSession(queue []*HostRequest) *session {
	host := &scriptedHost{queue: queue}
	return &session{framer: newFramer(host), numInputs: 1}
}

func TestVerifyPrevTxAccepts(t *testing.T) {
	script := []byte{0x76, 0xa9, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 0x88, 0xac}
	txid, init, in, out := legacyPrevTx(1, nil, 0xffffffff, 50000, script, 0)

	s := newPrevtxSession([]*HostRequest{
		{Type: HostRequestPrevtxInit, PrevtxInit: init},
		{Type: HostRequestPrevtxInput, PrevtxInput: in},
		{Type: HostRequestPrevtxOutput, PrevtxOutput: out},
	})

	input := &InputRequest{PrevOutHash: txid, PrevOutIndex: 0, PrevOutValue: 50000}
	if err := s.verifyPrevTx(context.Background(), 0, input); err != nil {
		t.Fatalf("verifyPrevTx returned %v, want nil", err)
	}
}

// S3: a flipped prev_out_hash byte must be rejected with InvalidInput.
func TestVerifyPrevTxRejectsHashMismatch(t *testing.T) {
	script := []byte{0x51}
	txid, init, in, out := legacyPrevTx(1, nil, 0xffffffff, 50000, script, 0)
	txid[0] ^= 0xff

	s := newPrevtxSession([]*HostRequest{
		{Type: HostRequestPrevtxInit, PrevtxInit: init},
		{Type: HostRequestPrevtxInput, PrevtxInput: in},
		{Type: HostRequestPrevtxOutput, PrevtxOutput: out},
	})

	input := &InputRequest{PrevOutHash: txid, PrevOutIndex: 0, PrevOutValue: 50000}
	err := s.verifyPrevTx(context.Background(), 0, input)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("verifyPrevTx error = %v, want ErrInvalidInput", err)
	}
}

// S4: a prev_out_value that doesn't match the corresponding prevtx output
// must be rejected with InvalidInput, before the hash is even checked.
func TestVerifyPrevTxRejectsValueMismatch(t *testing.T) {
	script := []byte{0x51}
	txid, init, in, out := legacyPrevTx(1, nil, 0xffffffff, 50000, script, 0)

	s := newPrevtxSession([]*HostRequest{
		{Type: HostRequestPrevtxInit, PrevtxInit: init},
		{Type: HostRequestPrevtxInput, PrevtxInput: in},
		{Type: HostRequestPrevtxOutput, PrevtxOutput: out},
	})

	input := &InputRequest{PrevOutHash: txid, PrevOutIndex: 0, PrevOutValue: 50001}
	err := s.verifyPrevTx(context.Background(), 0, input)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("verifyPrevTx error = %v, want ErrInvalidInput", err)
	}
}

func TestVerifyPrevTxRejectsEmptyPrevtx(t *testing.T) {
	s := newPrevtxSession([]*HostRequest{
		{Type: HostRequestPrevtxInit, PrevtxInit: &PrevTxInit{NumInputs: 0, NumOutputs: 1}},
	})

	input := &InputRequest{}
	err := s.verifyPrevTx(context.Background(), 0, input)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("verifyPrevTx error = %v, want ErrInvalidInput", err)
	}
}
