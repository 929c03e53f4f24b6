package overwrite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
)

// scriptedPrompter returns queued decisions in order.
type scriptedPrompter struct {
	decisions []Decision
	calls     int
	err       error
}

func (p *scriptedPrompter) ResolveConflict(_ context.Context, _ Conflict) (Decision, error) {
	if p.err != nil {
		return Decision{}, p.err
	}
	if p.calls >= len(p.decisions) {
		return Decision{Action: ActionSkip}, nil
	}
	d := p.decisions[p.calls]
	p.calls++
	return d, nil
}

func listing(entries ...backend.Entry) *backend.Listing {
	return &backend.Listing{Path: "/dest", Entries: entries}
}

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestResolveNoCollisionIsOverwrite(t *testing.T) {
	r := NewResolver(PolicyAsk, &scriptedPrompter{})
	d, err := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "new.txt", SourceSize: 10, SourceModTime: base},
		listing(backend.Entry{Name: "other.txt"}))
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionOverwrite {
		t.Errorf("action = %s, want overwrite (no conflict)", d.Action)
	}
}

func TestResolveDirectoryEntriesExempt(t *testing.T) {
	p := &scriptedPrompter{}
	r := NewResolver(PolicyAsk, p)
	d, err := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "data", SourceSize: 10, SourceModTime: base},
		listing(backend.Entry{Name: "data", IsDir: true}))
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionOverwrite || p.calls != 0 {
		t.Error("directory collisions should pass through without prompting")
	}
}

func TestResolveConsultsPolicyBeforeUser(t *testing.T) {
	p := &scriptedPrompter{}
	r := NewResolver(PolicyAlwaysSkip, p)
	d, err := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 10, SourceModTime: base},
		listing(backend.Entry{Name: "x.txt", Size: 10, ModTime: base}))
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionSkip {
		t.Errorf("action = %s, want skip", d.Action)
	}
	if p.calls != 0 {
		t.Error("policy decision should not prompt")
	}
}

func TestResolveNeverOverwritesWithoutConsultation(t *testing.T) {
	// A colliding file with the ask policy must reach the prompter.
	p := &scriptedPrompter{decisions: []Decision{{Action: ActionOverwrite}}}
	r := NewResolver(PolicyAsk, p)
	_, err := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 10, SourceModTime: base},
		listing(backend.Entry{Name: "x.txt", Size: 99, ModTime: base}))
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Errorf("prompter calls = %d, want 1", p.calls)
	}
}

func TestOverwriteIfNewer(t *testing.T) {
	r := NewResolver(PolicyOverwriteIfNewer, nil)
	dest := listing(backend.Entry{Name: "x.txt", Size: 10, ModTime: base})

	cases := []struct {
		name    string
		srcTime time.Time
		want    Action
	}{
		{"source newer", base.Add(5 * time.Second), ActionOverwrite},
		{"source older", base.Add(-5 * time.Second), ActionSkip},
		{"within tolerance", base.Add(500 * time.Millisecond), ActionSkip},
	}
	for _, c := range cases {
		d, err := r.Resolve(context.Background(), NewBatchContext(),
			Conflict{Name: "x.txt", SourceSize: 10, SourceModTime: c.srcTime}, dest)
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != c.want {
			t.Errorf("%s: action = %s, want %s", c.name, d.Action, c.want)
		}
	}
}

func TestOverwriteIfDifferent(t *testing.T) {
	r := NewResolver(PolicyOverwriteIfDifferent, nil)
	dest := listing(backend.Entry{Name: "x.txt", Size: 10, ModTime: base})

	// Same size, same time within tolerance: skip.
	d, _ := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 10, SourceModTime: base.Add(200 * time.Millisecond)}, dest)
	if d.Action != ActionSkip {
		t.Errorf("identical: action = %s, want skip", d.Action)
	}

	// Size differs (exact comparison): overwrite.
	d, _ = r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 11, SourceModTime: base}, dest)
	if d.Action != ActionOverwrite {
		t.Errorf("size differs: action = %s, want overwrite", d.Action)
	}
}

func TestSkipIfIdenticalFallsBackToPrompt(t *testing.T) {
	p := &scriptedPrompter{decisions: []Decision{{Action: ActionCancel}}}
	r := NewResolver(PolicySkipIfIdentical, p)
	dest := listing(backend.Entry{Name: "x.txt", Size: 10, ModTime: base})

	// Identical: skip without prompting.
	d, _ := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 10, SourceModTime: base}, dest)
	if d.Action != ActionSkip || p.calls != 0 {
		t.Error("identical files should skip without prompting")
	}

	// Different: prompt.
	d, _ = r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 20, SourceModTime: base}, dest)
	if d.Action != ActionCancel || p.calls != 1 {
		t.Error("non-identical files should reach the prompter")
	}
}

func TestApplyToAllShortCircuits(t *testing.T) {
	p := &scriptedPrompter{decisions: []Decision{{Action: ActionOverwrite, ApplyToAll: true}}}
	r := NewResolver(PolicyAsk, p)
	bc := NewBatchContext()
	dest := listing(backend.Entry{Name: "x.txt", Size: 10, ModTime: base})

	d, err := r.Resolve(context.Background(), bc,
		Conflict{Name: "x.txt", SourceSize: 1, SourceModTime: base}, dest)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionOverwrite {
		t.Fatalf("first action = %s, want overwrite", d.Action)
	}

	// Second conflict: decided without a prompt or destination lookup.
	d, err = r.Resolve(context.Background(), bc,
		Conflict{Name: "y.txt", SourceSize: 1, SourceModTime: base}, dest)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionOverwrite {
		t.Errorf("second action = %s, want overwrite", d.Action)
	}
	if p.calls != 1 {
		t.Errorf("prompter calls = %d, want 1 (apply-to-all active)", p.calls)
	}

	// Reset scopes the decision to the batch.
	bc.Reset()
	p.decisions = append(p.decisions, Decision{Action: ActionSkip})
	d, _ = r.Resolve(context.Background(), bc,
		Conflict{Name: "x.txt", SourceSize: 1, SourceModTime: base}, dest)
	if p.calls != 2 {
		t.Error("after Reset the prompter should be consulted again")
	}
	if d.Action != ActionSkip {
		t.Errorf("post-reset action = %s, want skip", d.Action)
	}
}

func TestApplyToAllRenameRecomputesName(t *testing.T) {
	p := &scriptedPrompter{decisions: []Decision{{Action: ActionRename, ApplyToAll: true}}}
	r := NewResolver(PolicyAsk, p)
	bc := NewBatchContext()
	dest := listing(
		backend.Entry{Name: "a.txt", Size: 1, ModTime: base},
		backend.Entry{Name: "b.txt", Size: 1, ModTime: base},
	)

	d1, _ := r.Resolve(context.Background(), bc, Conflict{Name: "a.txt", SourceSize: 2, SourceModTime: base}, dest)
	d2, _ := r.Resolve(context.Background(), bc, Conflict{Name: "b.txt", SourceSize: 2, SourceModTime: base}, dest)

	if d1.NewName != "a_1.txt" {
		t.Errorf("first rename = %q, want a_1.txt", d1.NewName)
	}
	if d2.NewName != "b_1.txt" {
		t.Errorf("second rename = %q, want b_1.txt", d2.NewName)
	}
}

func TestPrompterErrorPropagates(t *testing.T) {
	p := &scriptedPrompter{err: errors.New("stdin closed")}
	r := NewResolver(PolicyAsk, p)
	_, err := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 1, SourceModTime: base},
		listing(backend.Entry{Name: "x.txt", Size: 1, ModTime: base}))
	if err == nil {
		t.Error("expected prompter error to propagate")
	}
}

func TestNilPrompterDegradesToSkip(t *testing.T) {
	r := NewResolver(PolicyAsk, nil)
	d, err := r.Resolve(context.Background(), NewBatchContext(),
		Conflict{Name: "x.txt", SourceSize: 1, SourceModTime: base},
		listing(backend.Entry{Name: "x.txt", Size: 1, ModTime: base}))
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionSkip {
		t.Errorf("action = %s, want skip", d.Action)
	}
}

func TestUniqueName(t *testing.T) {
	dest := listing(
		backend.Entry{Name: "report.pdf"},
		backend.Entry{Name: "report_1.pdf"},
		backend.Entry{Name: "noext"},
	)

	cases := []struct{ in, want string }{
		{"report.pdf", "report_2.pdf"},
		{"fresh.pdf", "fresh.pdf"},
		{"noext", "noext_1"},
	}
	for _, c := range cases {
		if got := UniqueName(c.in, dest); got != c.want {
			t.Errorf("UniqueName(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	// The result must never be present in the listing.
	for _, c := range cases {
		got := UniqueName(c.in, dest)
		if _, taken := dest.Find(got); taken {
			t.Errorf("UniqueName(%q) returned a colliding name %q", c.in, got)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyAsk {
		t.Errorf("empty policy = (%s, %v), want (ask, nil)", p, err)
	}
	if _, err := ParsePolicy("always_overwrite"); err != nil {
		t.Errorf("valid policy rejected: %v", err)
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("invalid policy accepted")
	}
}
