package nativebtc

import (
	"context"
	"io"
	"sync"

	"github.com/shiftcrypto/bitbox02-signtx/signtx"
)

// UI is the confirmation surface App.SignOutput drives directly, separate
// from signtx.UI (which the orchestrator itself drives for progress/empty
// screens). Real firmware renders these as trinary accept/reject screens;
// this interface only needs a yes/no answer per dialog.
type UI interface {
	Confirm(ctx context.Context, text string) bool
}

// AutoUI answers every confirmation with Accept, recording each prompt it
// saw. It is the UI used by the demo daemon and by tests exercising the
// happy-path scenarios (spec.md §8 S1, S2, S5).
type AutoUI struct {
	Accept bool

	mu     sync.Mutex
	prompts []string
}

// NewAutoUI returns an AutoUI that accepts every dialog.
func NewAutoUI() *AutoUI {
	return &AutoUI{Accept: true}
}

func (u *AutoUI) Confirm(ctx context.Context, text string) bool {
	u.mu.Lock()
	u.prompts = append(u.prompts, text)
	u.mu.Unlock()
	return u.Accept
}

// Prompts returns every confirmation text seen so far, in order.
func (u *AutoUI) Prompts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.prompts))
	copy(out, u.prompts)
	return out
}

// screenProgress is a signtx.ProgressHandle that records Set calls and its
// own Close, standing in for the device's titled progress-bar screen.
type screenProgress struct {
	stack *ScreenStack
	title string
}

func (p *screenProgress) Set(fraction float32) {
	p.stack.record("progress.set", p.title)
}

func (p *screenProgress) Close() error {
	p.stack.record("pop", p.title)
	return nil
}

type emptyScreen struct {
	stack *ScreenStack
}

func (e *emptyScreen) Close() error {
	e.stack.record("pop", "empty")
	return nil
}

// ScreenStack implements signtx.UI and signtx.StatusReporter as a recording
// stand-in for the device's screen stack (spec.md §9 "Screen-stack
// lifetimes"), letting tests assert push/pop ordering instead of only the
// final titles shown.
type ScreenStack struct {
	mu      sync.Mutex
	events  []string
	statuses []string
}

func NewScreenStack() *ScreenStack {
	return &ScreenStack{}
}

func (s *ScreenStack) record(kind, detail string) {
	s.mu.Lock()
	s.events = append(s.events, kind+":"+detail)
	s.mu.Unlock()
}

func (s *ScreenStack) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func (s *ScreenStack) ProgressCreate(title string) signtx.ProgressHandle {
	s.record("push", title)
	return &screenProgress{stack: s, title: title}
}

func (s *ScreenStack) EmptyCreate() io.Closer {
	s.record("push", "empty")
	return &emptyScreen{stack: s}
}

func (s *ScreenStack) Status(ctx context.Context, text string, success bool) {
	s.mu.Lock()
	s.statuses = append(s.statuses, text)
	s.mu.Unlock()
}

func (s *ScreenStack) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.statuses))
	copy(out, s.statuses)
	return out
}
