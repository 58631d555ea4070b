package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
)

// Column references an attribute in a view definition, in the
// connector's unified column space: built-in pseudo attributes occupy
// ids below the threshold, custom attributes are the server attribute
// id offset by it.
type Column int

// columnThreshold separates pseudo columns from custom attribute
// columns and drives the serialized offset encoding.
const columnThreshold = 1000

const (
	ColumnName         Column = 1
	ColumnProject      Column = 2
	ColumnFolder       Column = 3
	ColumnCreatedDate  Column = 4
	ColumnModifiedDate Column = 5
	ColumnCreatedBy    Column = 6
	ColumnModifiedBy   Column = 7
)

// ColumnForAttribute returns the column reference for a custom
// attribute.
func ColumnForAttribute(a *Attribute) Column {
	return Column(a.ID + columnThreshold)
}

// AttributeID returns the server attribute id for a custom column, or
// false for a pseudo column.
func (c Column) AttributeID() (int, bool) {
	if c >= columnThreshold {
		return int(c) - columnThreshold, true
	}
	return 0, false
}

// encode maps a column to its serialized form: custom columns drop the
// threshold offset, pseudo columns gain it.
func (c Column) encode() int {
	if c >= columnThreshold {
		return int(c) - columnThreshold
	}
	return int(c) + columnThreshold
}

// decodeColumn inverts Column.encode.
func decodeColumn(stored int) Column {
	if stored >= columnThreshold {
		return Column(stored - columnThreshold)
	}
	return Column(stored + columnThreshold)
}

// Operator is a condition's comparison operator.
type Operator string

const (
	OpEQ       Operator = "EQ"
	OpNEQ      Operator = "NEQ"
	OpGT       Operator = "GT"
	OpGTE      Operator = "GTE"
	OpLT       Operator = "LT"
	OpLTE      Operator = "LTE"
	OpBegins   Operator = "BEGINS"
	OpEnds     Operator = "ENDS"
	OpContains Operator = "CONTAINS"
	OpIn       Operator = "IN"
)

var validOperators = map[Operator]bool{
	OpEQ: true, OpNEQ: true, OpGT: true, OpGTE: true, OpLT: true,
	OpLTE: true, OpBegins: true, OpEnds: true, OpContains: true, OpIn: true,
}

// Condition is one clause of a view definition: attribute, operator,
// literal comparison value.
type Condition struct {
	Column Column
	Op     Operator
	Value  string
}

// ViewDefinition is the stored filter of a view: ordered conditions
// combined with logical AND, plus visible columns and sort order.
type ViewDefinition struct {
	Columns    []Column
	Conditions []Condition
	SortColumn Column
	SortDesc   bool
}

// definitionMarker opens every serialized view definition.
const definitionMarker = "VIEW"

// ParseViewDefinition parses a stored definition string. Custom column
// references are validated against the owning issue type when one is
// given. Round-tripping through Serialize preserves conditions, columns
// and sort order, though not necessarily whitespace.
func ParseViewDefinition(text string, issueType *IssueType) (*ViewDefinition, error) {
	tokens, err := protocol.ParseLine(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 || tokens[0] != definitionMarker {
		return nil, &protocol.MalformedLineError{Line: text, Reason: "view definition must begin with " + definitionMarker}
	}
	def := &ViewDefinition{}
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, &protocol.MalformedLineError{Line: text, Reason: "definition entry without value: " + tok}
		}
		switch key {
		case "columns":
			for _, part := range strings.Split(value, ",") {
				col, err := parseColumnRef(part, issueType)
				if err != nil {
					return nil, err
				}
				def.Columns = append(def.Columns, col)
			}
		case "sort-column":
			col, err := parseColumnRef(value, issueType)
			if err != nil {
				return nil, err
			}
			def.SortColumn = col
		case "sort-desc":
			def.SortDesc = value == "1"
		case "filters":
			conditions, err := parseFilters(value, issueType)
			if err != nil {
				return nil, err
			}
			def.Conditions = conditions
		}
		// Unknown keys written by newer servers are skipped.
	}
	return def, nil
}

func parseColumnRef(s string, issueType *IssueType) (Column, error) {
	stored, err := strconv.Atoi(s)
	if err != nil {
		return 0, &protocol.MalformedLineError{Line: s, Reason: "column reference is not an integer"}
	}
	col := decodeColumn(stored)
	if attrID, custom := col.AttributeID(); custom && issueType != nil {
		if _, ok := issueType.Attributes.Get(attrID); !ok {
			return 0, &protocol.MalformedLineError{
				Line:   s,
				Reason: fmt.Sprintf("column references attribute %d outside issue type %q", attrID, issueType.Name),
			}
		}
	}
	return col, nil
}

// parseFilters decodes a `{"CLAUSE","CLAUSE"}` value. Spaces inside the
// braces are escaped as backslash-space at the outer tokenization
// level; they are restored here before the content is re-tokenized
// with ',' and '"'.
func parseFilters(value string, issueType *IssueType) ([]Condition, error) {
	value = strings.ReplaceAll(value, `\ `, " ")
	clauses, err := parseBraceList(value)
	if err != nil {
		return nil, err
	}
	var conditions []Condition
	for _, clause := range clauses {
		cond, err := parseConditionClause(clause, issueType)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// parseConditionClause decodes one `OP column=<id> value='<val>'`
// clause. The value is split off textually first so quoted values may
// contain spaces, then unquoted with the protocol tokenizer.
func parseConditionClause(clause string, issueType *IssueType) (Condition, error) {
	idx := strings.Index(clause, "value=")
	if idx < 0 {
		return Condition{}, &protocol.MalformedLineError{Line: clause, Reason: "condition clause without value"}
	}
	head := strings.TrimSpace(clause[:idx])
	rawValue := clause[idx+len("value="):]

	headTokens, err := protocol.ParseLine(head)
	if err != nil {
		return Condition{}, err
	}
	if len(headTokens) != 2 {
		return Condition{}, &protocol.MalformedLineError{Line: clause, Reason: "condition clause needs operator and column"}
	}
	op := Operator(headTokens[0])
	if !validOperators[op] {
		return Condition{}, &protocol.MalformedLineError{Line: clause, Reason: "unknown condition operator " + headTokens[0]}
	}
	colRef, ok := strings.CutPrefix(headTokens[1], "column=")
	if !ok {
		return Condition{}, &protocol.MalformedLineError{Line: clause, Reason: "condition clause without column"}
	}
	col, err := parseColumnRef(colRef, issueType)
	if err != nil {
		return Condition{}, err
	}

	valueTokens, err := protocol.ParseLine(rawValue)
	if err != nil {
		return Condition{}, err
	}
	value := ""
	if len(valueTokens) > 0 {
		value = valueTokens[0]
	}
	return Condition{Column: col, Op: op, Value: value}, nil
}

// Serialize renders the definition back to its stored string form.
func (d *ViewDefinition) Serialize() string {
	var b strings.Builder
	b.WriteString(definitionMarker)
	if len(d.Columns) > 0 {
		refs := make([]string, len(d.Columns))
		for i, col := range d.Columns {
			refs[i] = strconv.Itoa(col.encode())
		}
		b.WriteString(" columns=")
		b.WriteString(strings.Join(refs, ","))
	}
	if d.SortColumn != 0 {
		fmt.Fprintf(&b, " sort-column=%d", d.SortColumn.encode())
	}
	// sort-desc does not require a sort column.
	if d.SortDesc {
		b.WriteString(" sort-desc=1")
	} else if d.SortColumn != 0 {
		b.WriteString(" sort-desc=0")
	}
	if len(d.Conditions) > 0 {
		clauses := make([]string, len(d.Conditions))
		for i, cond := range d.Conditions {
			clause := fmt.Sprintf("%s column=%d value=%s",
				cond.Op, cond.Column.encode(), protocol.Quote(cond.Value))
			clauses[i] = protocol.QuoteWith(clause, '"')
		}
		filters := "{" + strings.Join(clauses, ",") + "}"
		// Escape spaces so the whole filters entry stays one token at
		// the outer tokenization level.
		b.WriteString(" filters=")
		b.WriteString(strings.ReplaceAll(filters, " ", `\ `))
	}
	return b.String()
}

// View is a saved, named filter owned by an issue type.
type View struct {
	ID         int
	Name       string
	Type       *IssueType
	Public     bool
	Definition *ViewDefinition
}

// NewViewFromRow constructs a View from a `W <id> <typeId> '<name>'
// <public> '<definition>'` row. The owning issue type must already be
// known and match the row.
func NewViewFromRow(row protocol.Row, owner *IssueType) (*View, error) {
	if err := row.RequireTag(protocol.TagView); err != nil {
		return nil, err
	}
	if err := row.Require(5); err != nil {
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
	if owner == nil || owner.ID != typeID {
		return nil, &protocol.MalformedLineError{
			Line:   row.Line(),
			Reason: "view row references an unknown issue type",
		}
	}
	public, err := row.Int(3)
	if err != nil {
		return nil, err
	}
	def, err := ParseViewDefinition(row.String(4), owner)
	if err != nil {
		return nil, err
	}
	return &View{
		ID:         id,
		Name:       row.String(2),
		Type:       owner,
		Public:     public == 1,
		Definition: def,
	}, nil
}

func (v *View) EntityID() int      { return v.ID }
func (v *View) EntityName() string { return v.Name }
