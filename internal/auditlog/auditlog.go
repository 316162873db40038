// Package auditlog is a supplementary append-only record of completed
// signing sessions, persisted through the donor storage package the same
// way storage.Save persists any other Savable (storage/save.go). spec.md
// itself has no audit-trail module; this exists to give storage.Storage a
// concrete home in this repo per SPEC_FULL.md's domain-stack wiring. The
// demo daemon does not write to it.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shiftcrypto/bitbox02-signtx/signtx"
	"github.com/shiftcrypto/bitbox02-signtx/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Entry is one completed (or aborted) signing session.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Coin      string    `json:"coin"`
	NumInputs uint32    `json:"num_inputs"`
	NumOutputs uint32   `json:"num_outputs"`
	Succeeded bool      `json:"succeeded"`
	ErrorCode int       `json:"error_code,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Path implements storage.Savable.
func (e *Entry) Path() string {
	return fmt.Sprintf("signtx/sessions/%s", e.ID.String())
}

// Serialize implements storage.Serializer.
func (e *Entry) Serialize(w io.Writer) error {
	return json.NewEncoder(w).Encode(e)
}

// Deserialize implements storage.Deserializer.
func (e *Entry) Deserialize(r io.Reader) error {
	return json.NewDecoder(r).Decode(e)
}

// Log appends audit entries to a storage.Storage backend.
type Log struct {
	store storage.Storage
}

// New wraps an existing storage.Storage connection.
func New(store storage.Storage) *Log {
	return &Log{store: store}
}

// Record builds and persists one session entry. err is the outcome of the
// Sign call that just finished (nil on success).
func (l *Log) Record(ctx context.Context, init *signtx.InitRequest, err error) error {
	entry := &Entry{
		ID:         uuid.New(),
		Coin:       init.Coin.DisplayUnit(),
		NumInputs:  init.NumInputs,
		NumOutputs: init.NumOutputs,
		Succeeded:  err == nil,
		RecordedAt: time.Now().UTC(),
	}
	for _, code := range []int{signtx.ErrorCodeInvalidState, signtx.ErrorCodeInvalidInput, signtx.ErrorCodeUserAbort} {
		if signtx.IsErrorCode(err, code) {
			entry.ErrorCode = code
		}
	}

	if saveErr := storage.Save(ctx, l.store, entry); saveErr != nil {
		return errors.Wrap(saveErr, "save audit entry")
	}
	return nil
}

// Sessions lists the storage keys of every recorded session under the
// log's root, as returned by the backend's List.
func (l *Log) Sessions(ctx context.Context) ([]string, error) {
	names, err := l.store.List(ctx, "signtx/sessions/")
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	return names, nil
}
