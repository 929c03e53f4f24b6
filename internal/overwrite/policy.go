// Package overwrite decides what happens when a transfer's destination name
// already exists. It consults the persisted user policy first and falls back
// to interactive resolution, with an apply-to-all short-circuit scoped to
// the current transfer batch.
package overwrite

import "fmt"

// Policy is the persisted user preference for destination conflicts.
type Policy string

const (
	// PolicyAsk prompts for every conflict. This is the default.
	PolicyAsk Policy = "ask"

	PolicyAlwaysOverwrite Policy = "always_overwrite"
	PolicyAlwaysSkip      Policy = "always_skip"
	PolicyAlwaysRename    Policy = "always_rename"

	// PolicyOverwriteIfNewer overwrites when the source is strictly newer
	// than the destination (outside the timestamp tolerance), skips
	// otherwise.
	PolicyOverwriteIfNewer Policy = "overwrite_if_newer"

	// PolicyOverwriteIfDifferent overwrites when size or modification
	// time differ, skips otherwise.
	PolicyOverwriteIfDifferent Policy = "overwrite_if_different"

	// PolicySkipIfIdentical skips when size and modification time match;
	// anything else falls back to interactive resolution.
	PolicySkipIfIdentical Policy = "skip_if_identical"
)

// ParsePolicy validates a stored policy string. Unknown values return an
// error so a corrupted settings file surfaces instead of silently behaving
// like "ask".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAsk, PolicyAlwaysOverwrite, PolicyAlwaysSkip, PolicyAlwaysRename,
		PolicyOverwriteIfNewer, PolicyOverwriteIfDifferent, PolicySkipIfIdentical:
		return Policy(s), nil
	case "":
		return PolicyAsk, nil
	}
	return "", fmt.Errorf("unknown overwrite policy %q", s)
}
