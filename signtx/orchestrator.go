package signtx

import (
	"context"
	"io"

	"github.com/shiftcrypto/bitbox02-signtx/logger"
)

// smallTxProgressThreshold is the input count above which phase 3 gets its
// own "Signing transaction..." progress bar. Below it, signing is fast
// enough that the bar would only flash (spec.md §4.3).
const smallTxProgressThreshold = 2

// session carries the mutable state of a single signing pass. It exists
// only for the lifetime of one Sign call: the native signing state, the
// screen stack, and the keystore are process-wide and exclusively owned by
// this session while it runs (spec.md §5).
type session struct {
	framer *Framer

	keystore Keystore
	app      AppBTC
	ui       UI
	status   StatusReporter

	numInputs  uint32
	numOutputs uint32

	progress ProgressHandle
}

func (s *session) setProgress(fraction float32) {
	if s.progress != nil {
		s.progress.Set(fraction)
	}
}

// Sign drives the whole streaming signing session to completion (spec.md
// §2, §4.3) and is the cleanup wrapper (C6): sign_reset is guaranteed on
// every exit path via defer, and UserAbort additionally renders a
// cancellation toast.
//
// init is the descriptor carried by the host's initiating BtcSignInit
// request, which the outer request dispatcher (outside this package's
// scope, see spec.md §1) hands to Sign directly rather than through a
// HostChannel round-trip: the device has not sent any hint yet when that
// first request arrives.
func Sign(ctx context.Context, init *InitRequest, host HostChannel, keystore Keystore, app AppBTC, ui UI, status StatusReporter) error {
	s := &session{
		framer:     newFramer(host),
		keystore:   keystore,
		app:        app,
		ui:         ui,
		status:     status,
		numInputs:  init.NumInputs,
		numOutputs: init.NumOutputs,
	}

	defer app.SignReset(ctx)

	err := s.run(ctx, init)

	if IsErrorCode(err, ErrorCodeUserAbort) {
		status.Status(ctx, "Transaction canceled", false)
	}

	return err
}

func (s *session) run(ctx context.Context, init *InitRequest) error {
	if s.keystore.IsLocked() {
		return ErrInvalidState
	}

	// Phase 0: init. Full validation (coin, version, locktime bounds,
	// script-config well-formedness, cross-input BIP44 consistency) is
	// delegated to the native sign_init helper.
	if err := s.app.SignInit(ctx, init); err != nil {
		return err
	}

	s.progress = s.ui.ProgressCreate("Loading transaction...")

	if err := s.phase1(ctx); err != nil {
		s.closeProgress()
		return err
	}
	s.setProgress(1)

	if err := s.phase2(ctx); err != nil {
		return err
	}

	if err := s.phase3(ctx); err != nil {
		return err
	}

	s.framer.done(ctx)
	return nil
}

func (s *session) closeProgress() {
	if s.progress != nil {
		s.progress.Close()
		s.progress = nil
	}
}

// phase1 runs pass-1 input accumulation plus prevtx verification for every
// input (spec.md §4.3 Phase 1).
func (s *session) phase1(ctx context.Context) error {
	logger.Info(ctx, "signtx: phase 1 (pass-1 inputs + prevtx)")

	for i := uint32(0); i < s.numInputs; i++ {
		s.setProgress(float32(i) / float32(s.numInputs))

		input, err := s.framer.getInput(ctx, i)
		if err != nil {
			return err
		}

		last := i == s.numInputs-1
		if err := s.app.SignInputPass1(ctx, input, last); err != nil {
			return err
		}

		if err := s.verifyPrevTx(ctx, i, input); err != nil {
			return err
		}
	}
	return nil
}

// phase2 drives output confirmation (spec.md §4.3 Phase 2).
func (s *session) phase2(ctx context.Context) error {
	logger.Info(ctx, "signtx: phase 2 (outputs)")

	var empty io.Closer

	for j := uint32(0); j < s.numOutputs; j++ {
		output, err := s.framer.getOutput(ctx, j)
		if err != nil {
			s.closeProgress()
			if empty != nil {
				empty.Close()
			}
			return err
		}

		if j == 0 {
			s.closeProgress()
			empty = s.ui.EmptyCreate()
		}

		last := j == s.numOutputs-1
		if err := s.app.SignOutput(ctx, output, last); err != nil {
			if empty != nil {
				empty.Close()
			}
			return err
		}
	}

	s.status.Status(ctx, "Transaction\nconfirmed", true)
	if empty != nil {
		empty.Close()
	}
	return nil
}

// phase3 runs pass-2 signing for every input, including the anti-klepto
// exchange when armed (spec.md §4.3 Phase 3, §4.4).
func (s *session) phase3(ctx context.Context) error {
	logger.Info(ctx, "signtx: phase 3 (pass-2 inputs + signatures)")

	var progress ProgressHandle
	if s.numInputs > smallTxProgressThreshold {
		progress = s.ui.ProgressCreate("Signing transaction...")
		defer progress.Close()
	}

	for i := uint32(0); i < s.numInputs; i++ {
		input, err := s.framer.getInput(ctx, i)
		if err != nil {
			return err
		}

		last := i == s.numInputs-1
		signature, commitment, err := s.app.SignInputPass2(ctx, input, last)
		if err != nil {
			return err
		}

		if input.HostNonceCommitment != nil {
			signature, err = s.runAntiKlepto(ctx, i, commitment)
			if err != nil {
				return err
			}
		}

		s.framer.next.HasSignature = true
		s.framer.next.Signature = signature

		if progress != nil {
			progress.Set(pass2Progress(i, s.numInputs))
		}
	}
	return nil
}
