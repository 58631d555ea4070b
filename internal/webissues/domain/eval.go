package domain

import (
	"strconv"
	"strings"
	"time"
)

// Matches evaluates the definition's conditions against an issue, in
// order, combined with logical AND; the first failing condition
// short-circuits. A numeric operator applied to a value that does not
// parse as a number makes the whole issue a non-match, never an error.
func (d *ViewDefinition) Matches(issue *Issue) bool {
	for _, cond := range d.Conditions {
		issueValue, attr := resolveColumn(cond.Column, issue)
		condValue := cond.Value
		if attr != nil && attr.Type == AttrDateTime {
			// Dates compare as epoch seconds.
			issueValue = toEpochString(issueValue)
			condValue = toEpochString(condValue)
		}
		matched, ok := compare(cond.Op, issueValue, condValue)
		if !ok || !matched {
			return false
		}
	}
	return true
}

// Query returns the issues in the given folders that match the view's
// definition and changed after sinceStamp (0 selects all). Folders of
// other issue types are skipped; result order follows the folder and
// issue collection order.
func (v *View) Query(folders []*Folder, sinceStamp int) []*Issue {
	var matches []*Issue
	for _, folder := range folders {
		if folder.Type != v.Type {
			continue
		}
		for _, issue := range folder.Issues.All() {
			if sinceStamp > 0 && issue.Stamp <= sinceStamp {
				continue
			}
			if v.Definition.Matches(issue) {
				matches = append(matches, issue)
			}
		}
	}
	return matches
}

// resolveColumn returns the issue's value for a column. Pseudo columns
// resolve from the issue and its folder; custom columns resolve from
// the value map, defaulting to the empty string, with the owning
// attribute returned for type-aware comparison.
func resolveColumn(col Column, issue *Issue) (string, *Attribute) {
	switch col {
	case ColumnName:
		return issue.Name, nil
	case ColumnProject:
		return issue.Folder.Project.Name, nil
	case ColumnFolder:
		return issue.Folder.Name, nil
	case ColumnCreatedDate:
		return strconv.FormatInt(issue.CreatedDate.Unix(), 10), nil
	case ColumnModifiedDate:
		return strconv.FormatInt(issue.ModifiedDate.Unix(), 10), nil
	case ColumnCreatedBy:
		if issue.CreatedUser != nil {
			return issue.CreatedUser.Login, nil
		}
		return "", nil
	case ColumnModifiedBy:
		if issue.ModifiedUser != nil {
			return issue.ModifiedUser.Login, nil
		}
		return "", nil
	}
	attrID, custom := col.AttributeID()
	if !custom {
		return "", nil
	}
	var attr *Attribute
	if issue.Folder != nil && issue.Folder.Type != nil {
		attr, _ = issue.Folder.Type.Attributes.Get(attrID)
	}
	return issue.Values[attrID], attr
}

// compare applies one operator. String operators are case-insensitive.
// The second return is false when a numeric comparison could not parse
// either side, which aborts the issue's whole condition chain.
func compare(op Operator, issueValue, condValue string) (matched, ok bool) {
	switch op {
	case OpEQ:
		return strings.EqualFold(issueValue, condValue), true
	case OpNEQ:
		return !strings.EqualFold(issueValue, condValue), true
	case OpBegins:
		return strings.HasPrefix(strings.ToLower(issueValue), strings.ToLower(condValue)), true
	case OpEnds:
		return strings.HasSuffix(strings.ToLower(issueValue), strings.ToLower(condValue)), true
	case OpContains:
		return strings.Contains(strings.ToLower(issueValue), strings.ToLower(condValue)), true
	case OpIn:
		for _, member := range strings.Split(condValue, ":") {
			if strings.EqualFold(issueValue, member) {
				return true, true
			}
		}
		return false, true
	case OpGT, OpGTE, OpLT, OpLTE:
		left, err := strconv.ParseFloat(strings.TrimSpace(issueValue), 64)
		if err != nil {
			return false, false
		}
		right, err := strconv.ParseFloat(strings.TrimSpace(condValue), 64)
		if err != nil {
			return false, false
		}
		switch op {
		case OpGT:
			return left > right, true
		case OpGTE:
			return left >= right, true
		case OpLT:
			return left < right, true
		default:
			return left <= right, true
		}
	}
	return false, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toEpochString normalizes a date value to epoch seconds. Values that
// are already integers pass through; unparseable values are returned
// unchanged and fail later as numeric non-matches.
func toEpochString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return strconv.FormatInt(t.Unix(), 10)
		}
	}
	return s
}
