package nativebtc

import (
	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"

	"github.com/pkg/errors"
)

// Keystore is a deterministic, seed-derived stand-in for the device
// keystore (spec.md §6's keystore.is_locked()/native key material). Tests
// use a fixed seed so signatures are byte-stable across runs, matching
// spec.md §8 scenario S1's requirement.
type Keystore struct {
	locked bool
	master bitcoin.ExtendedKey
}

// NewKeystore derives a master extended key from seed and returns it
// unlocked.
func NewKeystore(seed []byte) (*Keystore, error) {
	master, err := bitcoin.LoadMasterExtendedKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "load master key")
	}
	return &Keystore{master: master}, nil
}

// IsLocked implements signtx.Keystore.
func (k *Keystore) IsLocked() bool {
	return k.locked
}

// Lock/Unlock let tests exercise the ErrInvalidState "keystore locked"
// path (spec.md §4.3 Phase 0, §8).
func (k *Keystore) Lock()   { k.locked = true }
func (k *Keystore) Unlock() { k.locked = false }

// derive walks the BIP32 path from the keystore's master key.
func (k *Keystore) derive(path []uint32) (bitcoin.Key, error) {
	xkey, err := k.master.ChildKeyForPath(path)
	if err != nil {
		return bitcoin.Key{}, errors.Wrap(err, "derive keypath")
	}
	return xkey.Key(k.master.Network), nil
}
