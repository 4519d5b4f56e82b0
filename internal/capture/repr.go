package capture

import (
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"

	"stackscope/internal/trace"
)

// DefaultReprLimit bounds captured value representations when the caller
// configures no explicit limit. Truncation is policy, not data loss worth an
// error: it bounds memory and event size for arbitrarily large live values.
const DefaultReprLimit = 64

// describe converts one live value into its trace descriptor, normalizing
// the representation and truncating it to limit display cells.
func describe(v ValueInfo, limit int) trace.ValueDescriptor {
	repr := norm.NFC.String(v.Repr)
	if limit > 0 && runewidth.StringWidth(repr) > limit {
		repr = runewidth.Truncate(repr, limit, "…")
	}
	return trace.ValueDescriptor{TypeName: v.TypeName, Repr: repr}
}

// describeStack converts a whole reported stack.
func describeStack(stack []ValueInfo, limit int) trace.Snapshot {
	out := make(trace.Snapshot, 0, len(stack))
	for _, v := range stack {
		out = append(out, describe(v, limit))
	}
	return out
}
