// Package uid implements the composite identifier scheme that disambiguates
// an entity reference by its nesting context.
//
// A cache entity is addressed by raw (kind, id), but the same entity routinely
// appears in several lineups and in the playback queue at once. Each of those
// appearances holds its own [UID], distinguished by the source chain (the
// ordered list of view/nesting segments that produced the reference) and an
// optional positional index. Every UID is an independent cache subscription.
//
// The string form is canonical and round-trips: Parse(u.String()) == u for all
// valid UIDs. Equality is defined on the string form.
package uid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/halcyonfm/trackline/internal/models"
)

// NoIndex marks a UID without a positional index.
const NoIndex = -1

// Delimiters of the serialized form. Chain segments may not contain either.
const (
	fieldSep = ":"
	chainSep = ","
)

// UID identifies one contextual reference to a cache entity.
//
// The zero value is not a valid UID; construct with [Make] or [Parse].
type UID struct {
	Kind        models.Kind
	ID          int64
	SourceChain []string
	Index       int
}

// ParseError describes a malformed UID string. It unwraps to [ErrMalformed]
// so callers can branch on the class without inspecting the message.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed uid %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

// ErrMalformed is the sentinel underlying every [ParseError].
var ErrMalformed = fmt.Errorf("malformed uid")

// Make builds a UID for (kind, id) produced by the given source chain.
// The chain is copied; callers may reuse their slice.
func Make(kind models.Kind, id int64, chain ...string) UID {
	c := make([]string, len(chain))
	copy(c, chain)
	return UID{Kind: kind, ID: id, SourceChain: c, Index: NoIndex}
}

// WithIndex returns a copy of u carrying the given positional index.
func (u UID) WithIndex(index int) UID {
	out := u.clone()
	out.Index = index
	return out
}

// WithChainSegment returns a copy of u whose source chain is extended with
// segment. Used when re-keying entries for the queue or nested collections.
func (u UID) WithChainSegment(segment string) UID {
	out := u.clone()
	out.SourceChain = append(out.SourceChain, segment)
	return out
}

func (u UID) clone() UID {
	c := make([]string, len(u.SourceChain))
	copy(c, u.SourceChain)
	return UID{Kind: u.Kind, ID: u.ID, SourceChain: c, Index: u.Index}
}

// Source returns the first segment of the source chain, the lineup source key
// that originally produced this reference. Empty when the chain is empty.
func (u UID) Source() string {
	if len(u.SourceChain) == 0 {
		return ""
	}
	return u.SourceChain[0]
}

// HasIndex reports whether u carries a positional index.
func (u UID) HasIndex() bool { return u.Index != NoIndex }

// Equal reports whether two UIDs identify the same contextual reference.
// Defined on the serialized form.
func (u UID) Equal(other UID) bool { return u.String() == other.String() }

// String serializes u to its canonical form:
//
//	KIND:id:seg1,seg2[:index]
//
// String panics only for programmer error (it never does); invalid UIDs
// serialize to a string that Parse will reject, keeping round-trip checks
// honest rather than silently repairing bad input.
func (u UID) String() string {
	var b strings.Builder
	b.WriteString(string(u.Kind))
	b.WriteString(fieldSep)
	b.WriteString(strconv.FormatInt(u.ID, 10))
	b.WriteString(fieldSep)
	b.WriteString(strings.Join(u.SourceChain, chainSep))
	if u.HasIndex() {
		b.WriteString(fieldSep)
		b.WriteString(strconv.Itoa(u.Index))
	}
	return b.String()
}

// Valid reports whether u would survive a Parse round-trip.
func (u UID) Valid() bool {
	if !u.Kind.Valid() || u.ID < 0 || len(u.SourceChain) == 0 {
		return false
	}
	if u.Index < NoIndex {
		return false
	}
	for _, seg := range u.SourceChain {
		if !validSegment(seg) {
			return false
		}
	}
	return true
}

// Parse decodes a canonical UID string, rejecting malformed input with a
// [*ParseError] rather than failing silently mid-pipeline.
func Parse(s string) (UID, error) {
	fail := func(reason string) (UID, error) {
		return UID{}, &ParseError{Input: s, Reason: reason}
	}

	parts := strings.Split(s, fieldSep)
	if len(parts) < 3 || len(parts) > 4 {
		return fail("expected KIND:id:chain[:index]")
	}

	kind, err := models.ParseKind(parts[0])
	if err != nil {
		return fail("unknown kind " + strconv.Quote(parts[0]))
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id < 0 {
		return fail("id must be a non-negative integer")
	}

	if parts[2] == "" {
		return fail("source chain must not be empty")
	}
	chain := strings.Split(parts[2], chainSep)
	for _, seg := range chain {
		if !validSegment(seg) {
			return fail("invalid chain segment " + strconv.Quote(seg))
		}
	}

	index := NoIndex
	if len(parts) == 4 {
		index, err = strconv.Atoi(parts[3])
		if err != nil || index < 0 {
			return fail("index must be a non-negative integer")
		}
	}

	return UID{Kind: kind, ID: id, SourceChain: chain, Index: index}, nil
}

// CollectionSegment is the chain segment naming a nested collection context,
// e.g. collection-42 for tracks referenced from inside collection 42.
func CollectionSegment(collectionID int64) string {
	return "collection-" + strconv.FormatInt(collectionID, 10)
}

// QueueSegment is the chain segment appended when a lineup entry is re-keyed
// for the playback queue, so queue UIDs never alias lineup UIDs.
const QueueSegment = "queue"

// OwnerSegment is the chain segment tying an embedded owner's subscription to
// the entry it arrived with, e.g. owner-track-3. Owner UIDs built from it are
// deterministic, so teardown can reconstruct them from the entry alone.
func OwnerSegment(kind models.Kind, id int64) string {
	return "owner-" + strings.ToLower(string(kind)) + "-" + strconv.FormatInt(id, 10)
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
