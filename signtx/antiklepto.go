package signtx

import "context"

// runAntiKlepto drives the per-input nonce-commitment sub-protocol
// (spec.md §4.4) for input i, once SignInputPass2 has returned a
// signer commitment. The cryptographic proof obligations - verifying
// SHA256(host_nonce) == host_nonce_commitment and combining the nonces -
// live entirely in AppBTC.SignAntiklepto; this driver only owns the
// sequencing of the one extra host round-trip.
func (s *session) runAntiKlepto(ctx context.Context, i uint32, commitment *SignerCommitment) ([]byte, error) {
	hostNonce, err := s.framer.getAntikleptoHostNonce(ctx, i, *commitment)
	if err != nil {
		return nil, err
	}

	return s.app.SignAntiklepto(ctx, hostNonce.HostNonce)
}
