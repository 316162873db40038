package nativebtc

import (
	"strings"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"
	"github.com/shiftcrypto/bitbox02-signtx/signtx"

	"github.com/pkg/errors"
)

// legacyAddress renders a base58check P2PKH/P2SH address. It mirrors the
// donor bitcoin package's own (unexported) encodeAddress: version byte,
// payload, first 4 bytes of DoubleSha256 as checksum, Base58. The donor's
// exported Address type hardcodes BTC-compatible mainnet version bytes
// only, so coins with a different version byte (LTC) go through this
// smaller helper instead of bitcoin.NewAddressFromRawAddress.
func legacyAddress(version byte, hash160 []byte) string {
	payload := append([]byte{version}, hash160...)
	checksum := bitcoin.DoubleSha256(payload)
	return bitcoin.Base58(append(payload, checksum[:4]...))
}

// renderAddress turns a classified output into the display string the
// recipient confirmation dialog shows. P2PKH/P2WPKH payloads carry a
// 20-byte hash; P2SH/P2WSH carry the hash of the redeem/witness script.
func renderAddress(coin signtx.Coin, outType signtx.OutputType, payload []byte) (string, error) {
	params, ok := coins[coin]
	if !ok {
		return "", errors.Errorf("unknown coin %d", coin)
	}

	switch outType {
	case signtx.OutputTypeP2PKH:
		return legacyAddress(params.pkhVer, payload), nil
	case signtx.OutputTypeP2SH:
		return legacyAddress(params.shVer, payload), nil
	case signtx.OutputTypeP2WPKH:
		return segwitAddress(params.bech32HRP, 0, payload)
	case signtx.OutputTypeP2WSH:
		return segwitAddress(params.bech32HRP, 0, payload)
	default:
		return "", errors.Errorf("unknown output type %d", outType)
	}
}

// --- BIP-0173 bech32, segwit v0 only ---
//
// Neither the donor nor the rest of the retrieved pack vendors a bech32
// encoder (BSV, the donor's domain, never adopted segwit), so this is a
// direct, minimal implementation of the published algorithm rather than a
// stand-in for some dropped library.

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func bech32Polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func bech32HRPExpand(hrp string) []byte {
	result := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		result = append(result, byte(c)>>5)
	}
	result = append(result, 0)
	for _, c := range hrp {
		result = append(result, byte(c)&31)
	}
	return result
}

func bech32CreateChecksum(hrp string, data []byte) []byte {
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := bech32Polymod(values) ^ 1
	checksum := make([]byte, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return checksum
}

// convertBits regroups a byte slice between bit-widths, as required to pack
// an 8-bit witness program into 5-bit bech32 groups.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	acc := uint32(0)
	bits := uint(0)
	var result []byte
	maxv := uint32(1<<toBits) - 1

	for _, b := range data {
		if uint32(b)>>fromBits != 0 {
			return nil, errors.New("invalid data range for bech32 conversion")
		}
		acc = (acc << fromBits) | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			result = append(result, byte((acc>>bits)&maxv))
		}
	}

	if pad {
		if bits > 0 {
			result = append(result, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, errors.New("invalid padding in bech32 conversion")
	}

	return result, nil
}

// segwitAddress encodes a segwit v0 program (a 20-byte pubkey hash for
// P2WPKH, a 32-byte script hash for P2WSH) as a bech32 address.
func segwitAddress(hrp string, witnessVersion byte, program []byte) (string, error) {
	data, err := convertBits(program, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert witness program")
	}
	data = append([]byte{witnessVersion}, data...)

	checksum := bech32CreateChecksum(hrp, data)
	combined := append(data, checksum...)

	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteString("1")
	for _, b := range combined {
		sb.WriteByte(bech32Charset[b])
	}
	return sb.String(), nil
}
