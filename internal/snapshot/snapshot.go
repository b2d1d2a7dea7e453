package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/internal/scenario"
)

// FormatVersion is the version of the snapshot encoding.
const FormatVersion = 1

// ErrNotFound is returned by Load when no snapshot exists for a key.
var ErrNotFound error = errors.Sentinel(errors.CodeSnapshotNotFound)

// Snapshot is the state of every node of a graph at one point in time.
type Snapshot struct {
	Version  int                  `json:"version"`
	Scenario string               `json:"scenario"`
	TakenAt  time.Time            `json:"takenAt"`
	Clock    uint64               `json:"clock"`
	Nodes    []scenario.NodeState `json:"nodes"`
}

// Store persists snapshots.
type Store interface {
	// Save stores snap under key, replacing any previous snapshot.
	Save(ctx context.Context, key string, snap *Snapshot) error

	// Load returns the snapshot stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) (*Snapshot, error)

	// Delete removes the snapshot stored under key. Deleting a missing
	// snapshot is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys in no particular order.
	List(ctx context.Context) ([]string, error)
}

// Take records the state of g without evaluating anything.
func Take(g *scenario.Graph) *Snapshot {
	return &Snapshot{
		Version:  FormatVersion,
		Scenario: g.Name(),
		TakenAt:  time.Now().UTC(),
		Clock:    g.Runtime().Clock(),
		Nodes:    g.States(),
	}
}

// Restore writes the recorded source values into g, and the recorded
// writable values as overrides. Derived values are not restored; they
// recompute from the sources. Nodes g does not have are reported but do not
// stop the restore.
func Restore(g *scenario.Graph, snap *Snapshot) error {
	if snap.Scenario != g.Name() {
		return errors.Newf(errors.CodeSnapshotMismatch,
			"Snapshot of %q cannot be restored into %q", snap.Scenario, g.Name())
	}

	var result *multierror.Error
	for _, st := range snap.Nodes {
		if st.Value == nil || st.Status == "destroyed" {
			continue
		}
		kind, ok := g.Kind(st.Name)
		if !ok {
			result = multierror.Append(result,
				errors.Newf(errors.CodeUnknownNode, "Unknown node %q", st.Name))
			continue
		}

		var err error
		switch kind {
		case scenario.KindSource:
			err = g.Set(st.Name, *st.Value)
		case scenario.KindWritable:
			err = g.Write(st.Name, *st.Value)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func encode(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.New(errors.CodeSnapshotIO).Wrap(err)
	}
	return data, nil
}

func decode(key string, data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.New(errors.CodeSnapshotIO).
			WithDetail("Snapshot " + key + " is not valid JSON").
			Wrap(err)
	}
	return &snap, nil
}

func notFound(key string) error {
	return errors.Newf(errors.CodeSnapshotNotFound, "Snapshot %q not found", key)
}

func ioError(op, key string, err error) error {
	return errors.Newf(errors.CodeSnapshotIO, "Failed to %s snapshot %q", op, key).Wrap(err)
}

func validKey(key string) error {
	if key == "" {
		return errors.New(errors.CodeSnapshotIO).WithDetail("snapshot key cannot be empty")
	}
	return nil
}
