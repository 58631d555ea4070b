package domain

import (
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
)

// Change is one history entry of an issue: an attribute transitioning
// from OldValue to NewValue. AttributeID 0 denotes a change to the
// issue name.
type Change struct {
	ID          int
	CreatedDate time.Time
	CreatedUser *User
	AttributeID int
	OldValue    string
	NewValue    string
}

// NewChangeFromRow constructs a Change from an `H <id> <issueId>
// <createdDate> <createdUser> <attributeId> '<oldValue>' '<newValue>'`
// row.
func NewChangeFromRow(row protocol.Row, users *Collection[*User]) (*Change, error) {
	if err := row.RequireTag(protocol.TagChange); err != nil {
		return nil, err
	}
	if err := row.Require(7); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	created, err := row.Int64(2)
	if err != nil {
		return nil, err
	}
	userID, err := row.Int(3)
	if err != nil {
		return nil, err
	}
	attrID, err := row.Int(4)
	if err != nil {
		return nil, err
	}
	c := &Change{
		ID:          id,
		CreatedDate: time.Unix(created, 0),
		AttributeID: attrID,
		OldValue:    row.String(5),
		NewValue:    row.String(6),
	}
	if users != nil {
		c.CreatedUser, _ = users.Get(userID)
	}
	return c, nil
}

// Diff returns the old-to-new value transition as cleaned-up
// diff-match-patch segments, for callers that render change history.
func (c *Change) Diff() []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(c.OldValue, c.NewValue, false)
	return dmp.DiffCleanupSemantic(diffs)
}
