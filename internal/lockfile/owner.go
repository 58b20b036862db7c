package lockfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ErrNoOwner means the file has no owner record, so it was not written by
// this package or its holder could not write one.
var ErrNoOwner = errors.New("no owner record")

// OwnerKind tags owner records written by this package. Other programs'
// JSON files in the shared runtime directory do not carry it.
const OwnerKind = "alivelock"

// maxOwnerSize caps how much of an unknown file ReadOwner will look at.
const maxOwnerSize = 4096

// Owner describes the process that created a marker.
type Owner struct {
	Kind       string    `json:"kind"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Command    string    `json:"command,omitempty"`
}

func writeOwner(w io.Writer, at time.Time) error {
	owner := Owner{
		Kind:       OwnerKind,
		PID:        os.Getpid(),
		AcquiredAt: at.UTC(),
		Command:    strings.Join(os.Args, " "),
	}
	data, err := json.Marshal(owner)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ReadOwner parses the owner record stored in a marker file.
func ReadOwner(path string) (*Owner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxOwnerSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrNoOwner
	}

	var owner Owner
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&owner); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoOwner, path)
	}
	if owner.Kind != OwnerKind {
		return nil, fmt.Errorf("%w: %s was not written by alivelock", ErrNoOwner, path)
	}
	if owner.PID <= 0 {
		return nil, fmt.Errorf("%w: invalid PID %d in %s", ErrNoOwner, owner.PID, path)
	}
	if owner.AcquiredAt.IsZero() {
		return nil, fmt.Errorf("%w: missing acquired_at in %s", ErrNoOwner, path)
	}
	return &owner, nil
}
