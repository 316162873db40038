package main

import (
	"context"
	"crypto/sha256"
	"io"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
	"github.com/shiftcrypto/bitbox02-signtx/signtx"
)

// demoHost is a scripted signtx.HostChannel standing in for the wallet app
// on the other end of the wire, generating a deterministic transaction with
// the requested input/output count so the daemon can drive signtx.Sign
// without a real transport.
type demoHost struct {
	init *signtx.InitRequest
}

func newDemoHost(coin signtx.Coin, numInputs, numOutputs uint32) *demoHost {
	return &demoHost{
		init: &signtx.InitRequest{
			Coin:          coin,
			ScriptConfigs: []signtx.ScriptConfig{{KeypathAccount: []uint32{84 + bitcoin.Hardened, 0 + bitcoin.Hardened, 0 + bitcoin.Hardened}}},
			Version:       2,
			NumInputs:     numInputs,
			NumOutputs:    numOutputs,
			Locktime:      0,
		},
	}
}

func (h *demoHost) Exchange(ctx context.Context, next *signtx.NextResponse) (*signtx.HostRequest, error) {
	switch next.Type {
	case signtx.NextTypeInput:
		return &signtx.HostRequest{Type: signtx.HostRequestInput, Input: h.input(next.Index)}, nil

	case signtx.NextTypeOutput:
		return &signtx.HostRequest{Type: signtx.HostRequestOutput, Output: h.output(next.Index)}, nil

	case signtx.NextTypePrevtxInit:
		return &signtx.HostRequest{Type: signtx.HostRequestPrevtxInit, PrevtxInit: &signtx.PrevTxInit{
			Version: 1, NumInputs: 1, NumOutputs: 1, Locktime: 0,
		}}, nil

	case signtx.NextTypePrevtxInput:
		return &signtx.HostRequest{Type: signtx.HostRequestPrevtxInput, PrevtxInput: &signtx.PrevTxInput{
			PrevOutHash:     bitcoin.Hash32{},
			PrevOutIndex:    0xffffffff,
			SignatureScript: []byte{0x00},
			Sequence:        0xffffffff,
		}}, nil

	case signtx.NextTypePrevtxOutput:
		return &signtx.HostRequest{Type: signtx.HostRequestPrevtxOutput, PrevtxOutput: &signtx.PrevTxOutput{
			Value:        h.prevValue(next.Index),
			PubkeyScript: fixedPubkeyScript,
		}}, nil

	case signtx.NextTypeHostNonce:
		nonce := sha256.Sum256([]byte("demo host nonce"))
		return &signtx.HostRequest{Type: signtx.HostRequestAntikleptoSignature, AntikleptoHostNonce: &signtx.AntikleptoHostNonce{
			HostNonce: nonce[:],
		}}, nil

	case signtx.NextTypeDone:
		return &signtx.HostRequest{}, nil
	}
	return nil, signtx.ErrInvalidState
}

var fixedKeypath = []uint32{84 + bitcoin.Hardened, 0 + bitcoin.Hardened, 0 + bitcoin.Hardened, 0, 0}
var fixedPubkeyHash = make([]byte, 20)
var fixedPubkeyScript = buildP2PKHScript(fixedPubkeyHash)

func buildP2PKHScript(pkh []byte) []byte {
	s := []byte{0x76, 0xa9, 0x14}
	s = append(s, pkh...)
	return append(s, 0x88, 0xac)
}

func (h *demoHost) prevValue(index uint32) uint64 {
	return 100000 + uint64(index)*1000
}

func (h *demoHost) input(index uint32) *signtx.InputRequest {
	hash := prevTxHash(index)
	return &signtx.InputRequest{
		PrevOutHash:       hash,
		PrevOutIndex:      0,
		PrevOutValue:      h.prevValue(index),
		Sequence:          0xffffffff,
		Keypath:           fixedKeypath,
		ScriptConfigIndex: 0,
	}
}

func (h *demoHost) output(index uint32) *signtx.OutputRequest {
	if index == h.init.NumOutputs-1 {
		return &signtx.OutputRequest{
			Ours:              true,
			Type:              signtx.OutputTypeP2WPKH,
			Value:             10000,
			Payload:           fixedPubkeyHash,
			Keypath:           fixedKeypath,
			ScriptConfigIndex: 0,
		}
	}
	return &signtx.OutputRequest{
		Type:    signtx.OutputTypeP2WPKH,
		Value:   50000,
		Payload: fixedPubkeyHash,
	}
}

// prevTxHash computes the txid matching the deterministic previous
// transaction served for input index, so the core's verifyPrevTx check
// passes (one 1-in-1-out legacy tx: version 1, a single null-prevout input
// with a 1-byte sigScript, a single output paying prevValue(index) to
// fixedPubkeyScript, locktime 0).
func prevTxHash(index uint32) bitcoin.Hash32 {
	h := sha256.New()
	writeLE32(h, 1) // version
	h.Write([]byte{1}) // varint(numInputs)
	var nullHash bitcoin.Hash32
	h.Write(nullHash[:])
	writeLE32(h, 0xffffffff)
	h.Write([]byte{1, 0x00}) // varint(len(sigScript)), sigScript
	writeLE32(h, 0xffffffff) // sequence
	h.Write([]byte{1})       // varint(numOutputs)
	writeLE64(h, 100000+uint64(index)*1000)
	h.Write([]byte{byte(len(fixedPubkeyScript))})
	h.Write(fixedPubkeyScript)
	writeLE32(h, 0) // locktime

	inner := h.Sum(nil)
	sum := sha256.Sum256(inner)
	return bitcoin.Hash32(sum)
}

func writeLE32(w io.Writer, v uint32) {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	w.Write(b)
}

func writeLE64(w io.Writer, v uint64) {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	w.Write(b)
}
