package nativebtc

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
	"github.com/shiftcrypto/bitbox02-signtx/wire"
)

// sigHashCache memoizes the three BIP143 pre-commitments across every
// input of a transaction, exactly as the donor txbuilder.SigHashCache does
// for its BSV/forkid sighash. This module's version omits SigHashForkID
// and the BSV output-serialization helper (wire.TxOut.Serialize with its
// extra dust fields) since spec.md restricts signing to plain SIGHASH_ALL
// BIP143 (spec.md invariant 5, Non-goals).
type sigHashCache struct {
	hashPrevouts []byte
	hashSequence []byte
	hashOutputs  []byte
}

type txInput struct {
	prevOutHash  bitcoin.Hash32
	prevOutIndex uint32
	sequence     uint32
}

type txOutput struct {
	value        uint64
	pubkeyScript []byte
}

func (c *sigHashCache) HashPrevouts(inputs []txInput) []byte {
	if c.hashPrevouts != nil {
		return c.hashPrevouts
	}
	var buf bytes.Buffer
	for _, in := range inputs {
		buf.Write(in.prevOutHash[:])
		writeLE32(&buf, in.prevOutIndex)
	}
	c.hashPrevouts = bitcoin.DoubleSha256(buf.Bytes())
	return c.hashPrevouts
}

func (c *sigHashCache) HashSequence(inputs []txInput) []byte {
	if c.hashSequence != nil {
		return c.hashSequence
	}
	var buf bytes.Buffer
	for _, in := range inputs {
		writeLE32(&buf, in.sequence)
	}
	c.hashSequence = bitcoin.DoubleSha256(buf.Bytes())
	return c.hashSequence
}

func (c *sigHashCache) HashOutputs(outputs []txOutput) []byte {
	if c.hashOutputs != nil {
		return c.hashOutputs
	}
	var buf bytes.Buffer
	for _, out := range outputs {
		writeLE64(&buf, out.value)
		wire.WriteVarInt(&buf, 0, uint64(len(out.pubkeyScript)))
		buf.Write(out.pubkeyScript)
	}
	c.hashOutputs = bitcoin.DoubleSha256(buf.Bytes())
	return c.hashOutputs
}

// bip143SigHash computes the BIP143 sighash (SIGHASH_ALL only) for input
// index, reusing the cache's three pre-commitments the way
// txbuilder.SignatureHash reuses SigHashCache - accumulated in pass 1 here,
// consumed in pass 2.
func bip143SigHash(version uint32, inputs []txInput, outputs []txOutput, locktime uint32,
	index int, scriptCode []byte, value uint64, cache *sigHashCache) (bitcoin.Hash32, error) {

	s := sha256.New()

	writeLE32(s, version)
	s.Write(cache.HashPrevouts(inputs))
	s.Write(cache.HashSequence(inputs))

	s.Write(inputs[index].prevOutHash[:])
	writeLE32(s, inputs[index].prevOutIndex)

	wire.WriteVarInt(s, 0, uint64(len(scriptCode)))
	s.Write(scriptCode)

	writeLE64(s, value)
	writeLE32(s, inputs[index].sequence)

	s.Write(cache.HashOutputs(outputs))

	writeLE32(s, locktime)
	writeLE32(s, 1) // SIGHASH_ALL

	return bitcoin.Hash32(sha256.Sum256(s.Sum(nil))), nil
}

// p2wpkhScriptCode builds the implied "scriptCode" BIP143 uses for a
// P2WPKH input: the legacy P2PKH script for the same pubkey hash.
func p2wpkhScriptCode(pkh []byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, pkh...)
	script = append(script, 0x88, 0xac)
	return script
}

func writeLE32(w io.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeLE64(w io.Writer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}
