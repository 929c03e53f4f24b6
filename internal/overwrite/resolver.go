package overwrite

import (
	"context"
	"fmt"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/constants"
)

// Action is the outcome of a conflict resolution.
type Action string

const (
	ActionOverwrite Action = "overwrite"
	ActionSkip      Action = "skip"
	ActionRename    Action = "rename"
	ActionCancel    Action = "cancel"
)

// Decision is the resolution for one conflicting destination.
type Decision struct {
	Action  Action
	NewName string // set when Action == ActionRename
	// ApplyToAll reuses this decision for every remaining conflict in
	// the current batch.
	ApplyToAll bool
}

// Conflict describes a pending transfer whose destination name collides
// with an existing entry.
type Conflict struct {
	Name          string
	SourceSize    int64
	SourceModTime time.Time
	SourceIsRemote bool // true when the source side is the remote tree (download)
	Existing      backend.Entry
	Remaining     int // items left in the batch after this one
}

// Prompter resolves a conflict interactively. The call blocks the batch
// until the user decides; that suspension is the intended behavior.
type Prompter interface {
	ResolveConflict(ctx context.Context, c Conflict) (Decision, error)
}

// BatchContext carries batch-scoped resolution state. A fresh value is
// created for every batch, so an apply-to-all decision can never leak into
// the next batch. It is threaded explicitly through the transfer loop
// rather than stored on the resolver.
type BatchContext struct {
	applyAll *Decision
}

// NewBatchContext returns an empty batch context.
func NewBatchContext() *BatchContext { return &BatchContext{} }

// Reset clears any apply-to-all decision.
func (bc *BatchContext) Reset() { bc.applyAll = nil }

// Resolver decides overwrite conflicts. It is a decision function: it
// cannot fail except by propagating a prompter error, and a destination
// lookup miss is a normal non-conflict outcome.
type Resolver struct {
	policy   Policy
	prompter Prompter
}

// NewResolver creates a resolver with the given persisted policy. A nil
// prompter degrades "ask" to skip, which keeps unattended batches safe.
func NewResolver(policy Policy, prompter Prompter) *Resolver {
	if policy == "" {
		policy = PolicyAsk
	}
	return &Resolver{policy: policy, prompter: prompter}
}

// Resolve decides the fate of one pending transfer. dest is the current
// destination-tree listing; the apply-to-all short-circuit is consulted
// before any destination lookup.
func (r *Resolver) Resolve(ctx context.Context, bc *BatchContext, c Conflict, dest *backend.Listing) (Decision, error) {
	if bc != nil && bc.applyAll != nil {
		d := *bc.applyAll
		if d.Action == ActionRename {
			// A remembered rename still has to produce a fresh
			// non-colliding name for this item.
			d.NewName = UniqueName(c.Name, dest)
		}
		return d, nil
	}

	existing, found := dest.Find(c.Name)
	if !found {
		// No collision, nothing to decide.
		return Decision{Action: ActionOverwrite}, nil
	}
	if existing.IsDir {
		// Only plain files are subject to overwrite checks.
		return Decision{Action: ActionOverwrite}, nil
	}
	c.Existing = existing

	switch r.policy {
	case PolicyAlwaysOverwrite:
		return Decision{Action: ActionOverwrite}, nil
	case PolicyAlwaysSkip:
		return Decision{Action: ActionSkip}, nil
	case PolicyAlwaysRename:
		return Decision{Action: ActionRename, NewName: UniqueName(c.Name, dest)}, nil
	case PolicyOverwriteIfNewer:
		if sourceNewer(c.SourceModTime, existing.ModTime) {
			return Decision{Action: ActionOverwrite}, nil
		}
		return Decision{Action: ActionSkip}, nil
	case PolicyOverwriteIfDifferent:
		if c.SourceSize != existing.Size || !sameModTime(c.SourceModTime, existing.ModTime) {
			return Decision{Action: ActionOverwrite}, nil
		}
		return Decision{Action: ActionSkip}, nil
	case PolicySkipIfIdentical:
		if c.SourceSize == existing.Size && sameModTime(c.SourceModTime, existing.ModTime) {
			return Decision{Action: ActionSkip}, nil
		}
		return r.askUser(ctx, bc, c, dest)
	default: // PolicyAsk or unset
		return r.askUser(ctx, bc, c, dest)
	}
}

func (r *Resolver) askUser(ctx context.Context, bc *BatchContext, c Conflict, dest *backend.Listing) (Decision, error) {
	if r.prompter == nil {
		return Decision{Action: ActionSkip}, nil
	}
	d, err := r.prompter.ResolveConflict(ctx, c)
	if err != nil {
		return Decision{}, fmt.Errorf("conflict prompt: %w", err)
	}
	if d.Action == ActionRename && d.NewName == "" {
		d.NewName = UniqueName(c.Name, dest)
	}
	if d.ApplyToAll && bc != nil {
		remembered := d
		remembered.NewName = "" // recomputed per item
		bc.applyAll = &remembered
	}
	return d, nil
}

// sameModTime treats timestamps within the tolerance window as equal,
// absorbing clock and precision skew between backends.
func sameModTime(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= constants.ModTimeTolerance
}

// sourceNewer reports whether src is newer than dst beyond the tolerance.
func sourceNewer(src, dst time.Time) bool {
	return src.Sub(dst) > constants.ModTimeTolerance
}
