package signtx

import (
	"context"

	"github.com/shiftcrypto/bitbox02-signtx/bitcoin"

	"github.com/pkg/errors"
)

// Framer is the protocol framer (C1). It owns the single NextResponse that
// crosses every suspension point and exposes one typed accessor per
// expected next-message variant, each of which sets up the hint, performs
// the one host round-trip, validates the reply's variant, and resets the
// response's transient fields before returning.
type Framer struct {
	host HostChannel
	next NextResponse
}

func newFramer(host HostChannel) *Framer {
	return &Framer{host: host}
}

// exchange sends f.next as the hint, waits for the host's reply, and
// resets the transient fields of f.next so a signature or anti-klepto
// commitment is never delivered twice (spec.md invariant 5).
func (f *Framer) exchange(ctx context.Context) (*HostRequest, error) {
	req, err := f.host.Exchange(ctx, &f.next)
	if err != nil {
		return nil, err
	}
	f.next.resetTransient()
	return req, nil
}

func wrongVariant(want HostRequestType, got *HostRequest) error {
	return withDetail(ErrInvalidState, errors.Errorf("expected request variant %d, got %d", want, got.Type).Error())
}

// getInput fetches InputRequest i (used for both pass 1 and pass 2). After
// this call the reply expected is a bare InputRequest, which is not
// wrapped, so wrap is set to false.
func (f *Framer) getInput(ctx context.Context, i uint32) (*InputRequest, error) {
	f.next.Type = NextTypeInput
	f.next.Index = i
	f.next.Wrap = false

	req, err := f.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if req.Type != HostRequestInput {
		return nil, wrongVariant(HostRequestInput, req)
	}
	return req.Input, nil
}

// getPrevtxInit fetches the PrevtxInit for input i's previous transaction.
func (f *Framer) getPrevtxInit(ctx context.Context, i uint32) (*PrevTxInit, error) {
	f.next.Type = NextTypePrevtxInit
	f.next.Index = i
	f.next.Wrap = true

	req, err := f.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if req.Type != HostRequestPrevtxInit {
		return nil, wrongVariant(HostRequestPrevtxInit, req)
	}
	return req.PrevtxInit, nil
}

// getPrevtxInput fetches prevtx input k of input i's previous transaction.
func (f *Framer) getPrevtxInput(ctx context.Context, i, k uint32) (*PrevTxInput, error) {
	f.next.Type = NextTypePrevtxInput
	f.next.Index = i
	f.next.PrevIndex = k
	f.next.Wrap = true

	req, err := f.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if req.Type != HostRequestPrevtxInput {
		return nil, wrongVariant(HostRequestPrevtxInput, req)
	}
	return req.PrevtxInput, nil
}

// getPrevtxOutput fetches prevtx output k of input i's previous transaction.
func (f *Framer) getPrevtxOutput(ctx context.Context, i, k uint32) (*PrevTxOutput, error) {
	f.next.Type = NextTypePrevtxOutput
	f.next.Index = i
	f.next.PrevIndex = k
	f.next.Wrap = true

	req, err := f.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if req.Type != HostRequestPrevtxOutput {
		return nil, wrongVariant(HostRequestPrevtxOutput, req)
	}
	return req.PrevtxOutput, nil
}

// getOutput fetches OutputRequest j.
func (f *Framer) getOutput(ctx context.Context, j uint32) (*OutputRequest, error) {
	f.next.Type = NextTypeOutput
	f.next.Index = j
	f.next.Wrap = false

	req, err := f.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if req.Type != HostRequestOutput {
		return nil, wrongVariant(HostRequestOutput, req)
	}
	return req.Output, nil
}

// getAntikleptoHostNonce fetches the host's revealed nonce for input i,
// after staging the device's signer commitment on f.next.
func (f *Framer) getAntikleptoHostNonce(ctx context.Context, i uint32, commitment SignerCommitment) (*AntikleptoHostNonce, error) {
	f.next.Type = NextTypeHostNonce
	f.next.Index = i
	c := bitcoin.Hash32(commitment)
	f.next.AntiKleptoSignerCommitment = &c
	f.next.Wrap = true

	req, err := f.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if req.Type != HostRequestAntikleptoSignature {
		return nil, wrongVariant(HostRequestAntikleptoSignature, req)
	}
	return req.AntikleptoHostNonce, nil
}

// done sends the final Done hint, carrying the last input's staged
// signature. The host's reply to it is not used; the host stops sending
// requests once it observes Done.
func (f *Framer) done(ctx context.Context) {
	f.next.Type = NextTypeDone
	f.host.Exchange(ctx, &f.next)
}
