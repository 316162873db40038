// Package nativebtc is a concrete stand-in for the native signing engine
// spec.md treats as an opaque external collaborator (keystore and ECDSA
// primitives, address rendering, output classification, UI toolkit). It
// exists so signtx's orchestrator can be exercised end-to-end in tests and
// by the demo daemon; production firmware would replace it with the real
// native bridge.
package nativebtc

import "github.com/shiftcrypto/bitbox02-signtx/signtx"

// coinParams carries the address version bytes and bech32 HRP needed to
// render a recipient confirmation string for a classified output. Real
// firmware delegates this to the address-rendering engine named as
// out-of-scope in spec.md §1; this is a minimal, directly-checkable stand
// in for it.
type coinParams struct {
	unit      string
	pkhVer    byte
	shVer     byte
	bech32HRP string
}

var coins = map[signtx.Coin]coinParams{
	signtx.CoinBTC: {unit: "BTC", pkhVer: 0x00, shVer: 0x05, bech32HRP: "bc"},
	signtx.CoinLTC: {unit: "LTC", pkhVer: 0x30, shVer: 0x32, bech32HRP: "ltc"},
}
