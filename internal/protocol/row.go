package protocol

import "strconv"

// Tag identifies the entity kind a response row describes. The set is
// closed: every known single-letter tag has a constant, and anything
// else maps to TagIgnored so callers can log and skip it.
type Tag string

const (
	TagServerInfo Tag = "O" // server name, version, session user
	TagUser       Tag = "U"
	TagType       Tag = "T"
	TagAttribute  Tag = "M" // attribute ("member") of an issue type
	TagView       Tag = "W"
	TagProject    Tag = "P"
	TagFolder     Tag = "F"
	TagIssue      Tag = "I"
	TagValue      Tag = "V" // attribute value of an issue
	TagState      Tag = "S" // per-issue read stamp
	TagComment    Tag = "C"
	TagAttachment Tag = "A"
	TagChange     Tag = "H"
	TagDelete     Tag = "D" // removal marker in incremental responses
	TagError      Tag = "E" // server-reported failure

	// TagIgnored marks rows whose tag is not recognized. They are
	// skipped, never treated as failures.
	TagIgnored Tag = ""
)

var knownTags = map[string]Tag{
	"O": TagServerInfo,
	"U": TagUser,
	"T": TagType,
	"M": TagAttribute,
	"W": TagView,
	"P": TagProject,
	"F": TagFolder,
	"I": TagIssue,
	"V": TagValue,
	"S": TagState,
	"C": TagComment,
	"A": TagAttachment,
	"H": TagChange,
	"D": TagDelete,
	"E": TagError,
}

// Row is one tokenized response line. RawTag preserves the first token
// even when the tag is unrecognized; Args holds the remaining tokens.
type Row struct {
	Tag    Tag
	RawTag string
	Args   []string
	line   string
}

// ParseRow tokenizes a response line and classifies its tag.
// An empty line yields a TagIgnored row with no arguments.
func ParseRow(line string) (Row, error) {
	tokens, err := ParseLine(line)
	if err != nil {
		return Row{}, err
	}
	if len(tokens) == 0 {
		return Row{line: line}, nil
	}
	tag, ok := knownTags[tokens[0]]
	if !ok {
		tag = TagIgnored
	}
	return Row{Tag: tag, RawTag: tokens[0], Args: tokens[1:], line: line}, nil
}

// Line returns the raw text the row was parsed from.
func (r Row) Line() string { return r.line }

// Require validates the row's arity. Construction of an entity from a
// row that is too short fails fast rather than coercing.
func (r Row) Require(n int) error {
	if len(r.Args) < n {
		return malformed(r.line, "row %q needs %d arguments, got %d", r.RawTag, n, len(r.Args))
	}
	return nil
}

// RequireTag validates that the row carries the expected tag.
func (r Row) RequireTag(tag Tag) error {
	if r.Tag != tag {
		return malformed(r.line, "expected row tag %q, got %q", string(tag), r.RawTag)
	}
	return nil
}

// String returns the i-th argument, or "" when out of range.
func (r Row) String(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Int parses the i-th argument as an integer.
func (r Row) Int(i int) (int, error) {
	if i < 0 || i >= len(r.Args) {
		return 0, malformed(r.line, "row %q has no argument %d", r.RawTag, i)
	}
	v, err := strconv.Atoi(r.Args[i])
	if err != nil {
		return 0, malformed(r.line, "argument %d of row %q is not an integer: %q", i, r.RawTag, r.Args[i])
	}
	return v, nil
}

// Int64 parses the i-th argument as a 64-bit integer (timestamps).
func (r Row) Int64(i int) (int64, error) {
	if i < 0 || i >= len(r.Args) {
		return 0, malformed(r.line, "row %q has no argument %d", r.RawTag, i)
	}
	v, err := strconv.ParseInt(r.Args[i], 10, 64)
	if err != nil {
		return 0, malformed(r.line, "argument %d of row %q is not an integer: %q", i, r.RawTag, r.Args[i])
	}
	return v, nil
}
