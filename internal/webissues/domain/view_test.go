package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseViewDefinition_Full(t *testing.T) {
	_, issueType, _ := newTestModel(t)

	text := `VIEW columns=1001,1,2 sort-column=1001 sort-desc=1 filters={"EQ\ column=1003\ value='Bugs'","GTE\ column=1\ value='3'"}`
	def, err := ParseViewDefinition(text, issueType)
	require.NoError(t, err)

	// Stored 1001 is pseudo column 1 (name); stored 1 and 2 are the
	// custom attributes offset into the unified column space.
	require.Equal(t, []Column{ColumnName, 1001, 1002}, def.Columns)
	require.Equal(t, ColumnName, def.SortColumn)
	require.True(t, def.SortDesc)

	require.Equal(t, []Condition{
		{Column: ColumnFolder, Op: OpEQ, Value: "Bugs"},
		{Column: 1001, Op: OpGTE, Value: "3"},
	}, def.Conditions)
}

func TestParseViewDefinition_Errors(t *testing.T) {
	_, issueType, _ := newTestModel(t)

	cases := map[string]string{
		"missing marker":    "columns=1001",
		"unknown operator":  `VIEW filters={"XX\ column=1003\ value='x'"}`,
		"unknown attribute": `VIEW columns=99`,
		"clause sans value": `VIEW filters={"EQ\ column=1003"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseViewDefinition(text, issueType)
			require.Error(t, err)
		})
	}
}

func TestViewDefinition_SerializeRoundTrip(t *testing.T) {
	_, issueType, _ := newTestModel(t)

	def := &ViewDefinition{
		Columns:    []Column{ColumnName, ColumnFolder, 1001},
		SortColumn: 1001,
		SortDesc:   true,
		Conditions: []Condition{
			{Column: ColumnFolder, Op: OpEQ, Value: "Bugs"},
			{Column: ColumnName, Op: OpContains, Value: "crash on save"},
			{Column: 1002, Op: OpIn, Value: "Open:Closed"},
		},
	}

	parsed, err := ParseViewDefinition(def.Serialize(), issueType)
	require.NoError(t, err)
	require.Equal(t, *def, *parsed)
}

func TestViewDefinition_SerializeSortDescWithoutSortColumn(t *testing.T) {
	_, issueType, _ := newTestModel(t)

	def := &ViewDefinition{SortDesc: true}
	require.Equal(t, "VIEW sort-desc=1", def.Serialize())

	parsed, err := ParseViewDefinition(def.Serialize(), issueType)
	require.NoError(t, err)
	require.Equal(t, *def, *parsed)
}

// TestProperty_ViewDefinitionRoundTrip checks that serialize-then-parse
// preserves conditions, columns and sort order for arbitrary
// definitions over the fixture's issue type.
func TestProperty_ViewDefinitionRoundTrip(t *testing.T) {
	_, issueType, _ := newTestModel(t)

	columnPool := []Column{
		ColumnName, ColumnProject, ColumnFolder, ColumnCreatedDate,
		ColumnModifiedDate, ColumnCreatedBy, ColumnModifiedBy,
		1001, 1002, 1003,
	}
	operatorPool := []Operator{
		OpEQ, OpNEQ, OpGT, OpGTE, OpLT, OpLTE, OpBegins, OpEnds, OpContains, OpIn,
	}
	valueGen := rapid.String().
		Filter(func(s string) bool { return !strings.Contains(s, `\`) })

	rapid.Check(t, func(t *rapid.T) {
		def := &ViewDefinition{}
		for range rapid.IntRange(0, 4).Draw(t, "numColumns") {
			def.Columns = append(def.Columns, rapid.SampledFrom(columnPool).Draw(t, "column"))
		}
		if rapid.Bool().Draw(t, "hasSort") {
			def.SortColumn = rapid.SampledFrom(columnPool).Draw(t, "sortColumn")
		}
		def.SortDesc = rapid.Bool().Draw(t, "sortDesc")
		for range rapid.IntRange(0, 4).Draw(t, "numConditions") {
			def.Conditions = append(def.Conditions, Condition{
				Column: rapid.SampledFrom(columnPool).Draw(t, "condColumn"),
				Op:     rapid.SampledFrom(operatorPool).Draw(t, "op"),
				Value:  valueGen.Draw(t, "value"),
			})
		}

		parsed, err := ParseViewDefinition(def.Serialize(), issueType)
		if err != nil {
			t.Fatalf("round trip failed to parse: %v", err)
		}
		if !definitionsEqual(def, parsed) {
			t.Fatalf("round trip changed definition:\n  in:  %#v\n  out: %#v", def, parsed)
		}
	})
}

func definitionsEqual(a, b *ViewDefinition) bool {
	if len(a.Columns) != len(b.Columns) || len(a.Conditions) != len(b.Conditions) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	for i := range a.Conditions {
		if a.Conditions[i] != b.Conditions[i] {
			return false
		}
	}
	return a.SortColumn == b.SortColumn && a.SortDesc == b.SortDesc
}

func newTestIssue(folder *Folder, id int, name string, values map[int]string) *Issue {
	if values == nil {
		values = make(map[int]string)
	}
	issue := &Issue{
		ID:           id,
		Name:         name,
		Stamp:        id,
		Folder:       folder,
		CreatedDate:  time.Unix(1268680000, 0),
		ModifiedDate: time.Unix(1268681000, 0),
		Values:       values,
	}
	folder.Issues.Put(issue)
	return issue
}

func TestViewQuery_FolderEquals(t *testing.T) {
	_, issueType, project := newTestModel(t)
	bugs, _ := project.Folders.Get(20)
	features, _ := project.Folders.Get(21)

	inBugs := newTestIssue(bugs, 1, "Crash", nil)
	alsoInBugs := newTestIssue(bugs, 2, "Hang", nil)
	newTestIssue(features, 3, "Dark mode", nil)

	view := &View{
		ID:   1,
		Name: "Open bugs",
		Type: issueType,
		Definition: &ViewDefinition{
			Conditions: []Condition{{Column: ColumnFolder, Op: OpEQ, Value: "bugs"}},
		},
	}

	// Folder name matching is case-insensitive and independent of the
	// input folder order.
	for _, folders := range [][]*Folder{{bugs, features}, {features, bugs}} {
		matches := view.Query(folders, 0)
		require.ElementsMatch(t, []*Issue{inBugs, alsoInBugs}, matches)
	}
}

func TestViewQuery_SinceStamp(t *testing.T) {
	_, issueType, project := newTestModel(t)
	bugs, _ := project.Folders.Get(20)

	newTestIssue(bugs, 1, "Old", nil)
	fresh := newTestIssue(bugs, 9, "Fresh", nil)

	view := &View{Type: issueType, Definition: &ViewDefinition{}}
	require.Equal(t, []*Issue{fresh}, view.Query([]*Folder{bugs}, 5))
}

func TestMatches_NumericOperators(t *testing.T) {
	_, _, project := newTestModel(t)
	bugs, _ := project.Folders.Get(20)

	sev3 := newTestIssue(bugs, 1, "a", map[int]string{1: "3"})
	sev5 := newTestIssue(bugs, 2, "b", map[int]string{1: "5"})

	gt := &ViewDefinition{Conditions: []Condition{{Column: 1001, Op: OpGT, Value: "3"}}}
	require.False(t, gt.Matches(sev3))
	require.True(t, gt.Matches(sev5))

	// LT is a true less-than, not a mirrored greater-than.
	lt := &ViewDefinition{Conditions: []Condition{{Column: 1001, Op: OpLT, Value: "5"}}}
	require.True(t, lt.Matches(sev3))
	require.False(t, lt.Matches(sev5))

	lte := &ViewDefinition{Conditions: []Condition{{Column: 1001, Op: OpLTE, Value: "5"}}}
	require.True(t, lte.Matches(sev5))
}

func TestMatches_NumericParseFailureAbortsChain(t *testing.T) {
	_, _, project := newTestModel(t)
	bugs, _ := project.Folders.Get(20)

	issue := newTestIssue(bugs, 1, "a", map[int]string{1: "not-a-number"})

	// The failing numeric condition makes the issue a non-match even
	// though the following condition would trivially hold.
	def := &ViewDefinition{Conditions: []Condition{
		{Column: 1001, Op: OpGT, Value: "3"},
		{Column: ColumnFolder, Op: OpEQ, Value: "Bugs"},
	}}
	require.False(t, def.Matches(issue))
}

func TestMatches_StringAndSetOperators(t *testing.T) {
	_, _, project := newTestModel(t)
	bugs, _ := project.Folders.Get(20)

	issue := newTestIssue(bugs, 1, "Crash on save", map[int]string{2: "Open"})

	cases := []struct {
		cond Condition
		want bool
	}{
		{Condition{Column: ColumnName, Op: OpBegins, Value: "crash"}, true},
		{Condition{Column: ColumnName, Op: OpEnds, Value: "SAVE"}, true},
		{Condition{Column: ColumnName, Op: OpContains, Value: "on"}, true},
		{Condition{Column: ColumnName, Op: OpNEQ, Value: "crash on save"}, false},
		{Condition{Column: 1002, Op: OpIn, Value: "open:closed"}, true},
		{Condition{Column: 1002, Op: OpIn, Value: "closed:duplicate"}, false},
		// Absent attribute values default to the empty string.
		{Condition{Column: 1003, Op: OpEQ, Value: ""}, true},
	}
	for _, tc := range cases {
		def := &ViewDefinition{Conditions: []Condition{tc.cond}}
		require.Equal(t, tc.want, def.Matches(issue), "condition %+v", tc.cond)
	}
}

func TestMatches_DateConditions(t *testing.T) {
	_, _, project := newTestModel(t)
	bugs, _ := project.Folders.Get(20)

	// Attribute 3 is DATETIME; the stored value is epoch seconds and
	// the condition literal is a calendar date converted before the
	// generic numeric comparison.
	due := time.Date(2010, 3, 15, 0, 0, 0, 0, time.UTC)
	issue := newTestIssue(bugs, 1, "a", map[int]string{3: "1268611200"}) // 2010-03-15 UTC

	def := &ViewDefinition{Conditions: []Condition{
		{Column: 1003, Op: OpGTE, Value: due.AddDate(0, 0, -1).Format("2006-01-02")},
	}}
	require.True(t, def.Matches(issue))

	before := &ViewDefinition{Conditions: []Condition{
		{Column: 1003, Op: OpLT, Value: due.AddDate(0, 0, -1).Format("2006-01-02")},
	}}
	require.False(t, before.Matches(issue))
}

func TestNewViewFromRow(t *testing.T) {
	_, issueType, _ := newTestModel(t)

	row := mustRow(t, `W 5 2 'Open bugs' 1 'VIEW filters={"EQ\ column=1003\ value=\'Bugs\'"}'`)
	view, err := NewViewFromRow(row, issueType)
	require.NoError(t, err)
	require.Equal(t, "Open bugs", view.Name)
	require.True(t, view.Public)
	require.Len(t, view.Definition.Conditions, 1)
	require.Equal(t, Condition{Column: ColumnFolder, Op: OpEQ, Value: "Bugs"}, view.Definition.Conditions[0])
}
