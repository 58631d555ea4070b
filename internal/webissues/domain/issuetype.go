package domain

import (
	"strings"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
)

// AttributeType is the data type of an attribute's values.
type AttributeType string

const (
	AttrText     AttributeType = "TEXT"
	AttrNumeric  AttributeType = "NUMERIC"
	AttrEnum     AttributeType = "ENUM"
	AttrDateTime AttributeType = "DATETIME"
	AttrUser     AttributeType = "USER"
)

// IssueType defines the attributes and views applicable to issues in
// folders of that type.
type IssueType struct {
	ID         int
	Name       string
	Attributes *Collection[*Attribute]
	Views      *Collection[*View]
}

// NewIssueTypeFromRow constructs an IssueType from a `T <id> '<name>'`
// row.
func NewIssueTypeFromRow(row protocol.Row) (*IssueType, error) {
	if err := row.RequireTag(protocol.TagType); err != nil {
		return nil, err
	}
	if err := row.Require(2); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	return &IssueType{
		ID:         id,
		Name:       row.String(1),
		Attributes: NewCollection[*Attribute](),
		Views:      NewCollection[*View](),
	}, nil
}

func (t *IssueType) EntityID() int      { return t.ID }
func (t *IssueType) EntityName() string { return t.Name }

// Attribute is one typed field of an issue type.
type Attribute struct {
	ID       int
	Name     string
	Type     AttributeType
	Required bool
	ReadOnly bool
	DateOnly bool
	Items    []string // enum members, ENUM attributes only
}

// NewAttributeFromRow constructs an Attribute from an `M <id> <typeId>
// '<name>' '<definition>'` row. The definition string is itself
// tokenized: its first token is the data type, the rest are key=value
// flags, e.g. `ENUM required=1 items={"Open","Closed"}`.
func NewAttributeFromRow(row protocol.Row, owner *IssueType) (*Attribute, error) {
	if err := row.RequireTag(protocol.TagAttribute); err != nil {
		return nil, err
	}
	if err := row.Require(4); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	typeID, err := row.Int(1)
	if err != nil {
		return nil, err
	}
	if owner != nil && typeID != owner.ID {
		return nil, &protocol.MalformedLineError{
			Line:   row.Line(),
			Reason: "attribute row does not belong to the expected issue type",
		}
	}
	attr := &Attribute{ID: id, Name: row.String(2)}
	if err := attr.parseDefinition(row.String(3)); err != nil {
		return nil, err
	}
	return attr, nil
}

func (a *Attribute) parseDefinition(def string) error {
	tokens, err := protocol.ParseLine(def)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return &protocol.MalformedLineError{Line: def, Reason: "empty attribute definition"}
	}
	switch AttributeType(tokens[0]) {
	case AttrText, AttrNumeric, AttrEnum, AttrDateTime, AttrUser:
		a.Type = AttributeType(tokens[0])
	default:
		return &protocol.MalformedLineError{Line: def, Reason: "unknown attribute data type " + tokens[0]}
	}
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return &protocol.MalformedLineError{Line: def, Reason: "attribute flag without value: " + tok}
		}
		switch key {
		case "required":
			a.Required = value == "1"
		case "read-only":
			a.ReadOnly = value == "1"
		case "date-only":
			a.DateOnly = value == "1"
		case "items":
			items, err := parseBraceList(value)
			if err != nil {
				return err
			}
			a.Items = items
		}
		// Unrecognized flags are carried by newer servers; skip them.
	}
	return nil
}

// parseBraceList splits a `{"a","b"}` value into its elements.
func parseBraceList(value string) ([]string, error) {
	if !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return nil, &protocol.MalformedLineError{Line: value, Reason: "expected brace-delimited list"}
	}
	inner := value[1 : len(value)-1]
	if inner == "" {
		return nil, nil
	}
	return protocol.ParseLineWith(inner, ',', '"')
}

func (a *Attribute) EntityID() int      { return a.ID }
func (a *Attribute) EntityName() string { return a.Name }
