package signtx

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/shiftcrypto/bitbox02-signtx/wire"
)

// verifyPrevTx streams input i's previous transaction from the host,
// double-SHA256-hashes its canonical legacy serialization (spec.md §4.2,
// §6), and checks it against input's pre-commitments.
//
// The hasher here is deliberately crypto/sha256 applied incrementally,
// rather than the donor bitcoin.DoubleSha256 helper (which takes a single
// fully-buffered []byte): the device cannot buffer an entire previous
// transaction, so the preimage is fed to the hash.Hash a record at a time
// as it streams off the wire.
func (s *session) verifyPrevTx(ctx context.Context, i uint32, input *InputRequest) error {
	init, err := s.framer.getPrevtxInit(ctx, i)
	if err != nil {
		return err
	}
	if init.NumInputs < 1 || init.NumOutputs < 1 {
		return withDetail(ErrInvalidInput, "prevtx has no inputs or outputs")
	}

	h := sha256.New()
	writeUint32LE(h, init.Version)
	wire.WriteVarInt(h, 0, uint64(init.NumInputs))

	for k := uint32(0); k < init.NumInputs; k++ {
		s.setProgress(prevtxProgress(i, s.numInputs, prevtxSubInput(k, init.NumInputs, init.NumOutputs)))

		in, err := s.framer.getPrevtxInput(ctx, i, k)
		if err != nil {
			return err
		}
		h.Write(in.PrevOutHash[:])
		writeUint32LE(h, in.PrevOutIndex)
		wire.WriteVarInt(h, 0, uint64(len(in.SignatureScript)))
		h.Write(in.SignatureScript)
		writeUint32LE(h, in.Sequence)
	}

	wire.WriteVarInt(h, 0, uint64(init.NumOutputs))

	for k := uint32(0); k < init.NumOutputs; k++ {
		s.setProgress(prevtxProgress(i, s.numInputs, prevtxSubOutput(k, init.NumInputs, init.NumOutputs)))

		out, err := s.framer.getPrevtxOutput(ctx, i, k)
		if err != nil {
			return err
		}
		if k == input.PrevOutIndex && out.Value != input.PrevOutValue {
			return withDetail(ErrInvalidInput, "prevtx output value does not match input's prev_out_value")
		}
		writeUint64LE(h, out.Value)
		wire.WriteVarInt(h, 0, uint64(len(out.PubkeyScript)))
		h.Write(out.PubkeyScript)
	}

	writeUint32LE(h, init.Locktime)

	inner := h.Sum(nil)
	txid := sha256.Sum256(inner)

	if txid != input.PrevOutHash {
		return withDetail(ErrInvalidInput, "prevtx hash mismatch")
	}
	return nil
}

func writeUint32LE(w io.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeUint64LE(w io.Writer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}
