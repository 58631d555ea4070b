package domain

import (
	"time"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
)

// Issue is one tracked item inside a folder. Values maps attribute ids
// to raw string values; only attributes of the folder's issue type ever
// appear in it. ReadStamp is the per-session read marker carried by
// state rows.
type Issue struct {
	ID           int
	Name         string
	Stamp        int
	Folder       *Folder
	CreatedDate  time.Time
	CreatedUser  *User
	ModifiedDate time.Time
	ModifiedUser *User
	Values       map[int]string
	ReadStamp    int

	// Details, populated by a separate details fetch.
	Comments    []*Comment
	Attachments []*Attachment
	Changes     []*Change
}

// NewIssueFromRow constructs an Issue from an `I <id> <folderId>
// '<name>' <stamp> <createdDate> <createdUser> <modifiedDate>
// <modifiedUser>` row. The folder must already be known and match the
// row's folder id.
func NewIssueFromRow(row protocol.Row, folder *Folder, users *Collection[*User]) (*Issue, error) {
	if err := row.RequireTag(protocol.TagIssue); err != nil {
		return nil, err
	}
	if err := row.Require(8); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	folderID, err := row.Int(1)
	if err != nil {
		return nil, err
	}
	if folder == nil || folder.ID != folderID {
		return nil, &protocol.MalformedLineError{
			Line:   row.Line(),
			Reason: "issue row references an unknown folder",
		}
	}
	stamp, err := row.Int(3)
	if err != nil {
		return nil, err
	}
	createdDate, err := row.Int64(4)
	if err != nil {
		return nil, err
	}
	createdUser, err := row.Int(5)
	if err != nil {
		return nil, err
	}
	modifiedDate, err := row.Int64(6)
	if err != nil {
		return nil, err
	}
	modifiedUser, err := row.Int(7)
	if err != nil {
		return nil, err
	}
	issue := &Issue{
		ID:           id,
		Name:         row.String(2),
		Stamp:        stamp,
		Folder:       folder,
		CreatedDate:  time.Unix(createdDate, 0),
		ModifiedDate: time.Unix(modifiedDate, 0),
		Values:       make(map[int]string),
	}
	if users != nil {
		issue.CreatedUser, _ = users.Get(createdUser)
		issue.ModifiedUser, _ = users.Get(modifiedUser)
	}
	return issue, nil
}

func (i *Issue) EntityID() int      { return i.ID }
func (i *Issue) EntityName() string { return i.Name }

// Unread reports whether the issue has changed since it was last read:
// the read stamp is zero or differs from the issue's own stamp.
func (i *Issue) Unread() bool {
	return i.ReadStamp == 0 || i.ReadStamp != i.Stamp
}

// ApplyValueRow merges a `V <attributeId> <issueId> '<value>'` row into
// the issue's value map. The attribute must belong to the folder's
// issue type.
func (i *Issue) ApplyValueRow(row protocol.Row) error {
	if err := row.RequireTag(protocol.TagValue); err != nil {
		return err
	}
	if err := row.Require(3); err != nil {
		return err
	}
	attrID, err := row.Int(0)
	if err != nil {
		return err
	}
	issueID, err := row.Int(1)
	if err != nil {
		return err
	}
	if issueID != i.ID {
		return &protocol.MalformedLineError{
			Line:   row.Line(),
			Reason: "value row references a different issue",
		}
	}
	if _, ok := i.Folder.Type.Attributes.Get(attrID); !ok {
		return &protocol.MalformedLineError{
			Line:   row.Line(),
			Reason: "value row references an attribute outside the folder's issue type",
		}
	}
	i.Values[attrID] = row.String(2)
	return nil
}

// Comment is one text comment on an issue.
type Comment struct {
	ID          int
	CreatedDate time.Time
	CreatedUser *User
	Text        string
}

// NewCommentFromRow constructs a Comment from a `C <id> <issueId>
// <createdDate> <createdUser> '<text>'` row.
func NewCommentFromRow(row protocol.Row, users *Collection[*User]) (*Comment, error) {
	if err := row.RequireTag(protocol.TagComment); err != nil {
		return nil, err
	}
	if err := row.Require(5); err != nil {
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
	c := &Comment{
		ID:          id,
		CreatedDate: time.Unix(created, 0),
		Text:        row.String(4),
	}
	if users != nil {
		c.CreatedUser, _ = users.Get(userID)
	}
	return c, nil
}

// Attachment is one file attached to an issue. The file content is
// fetched separately and never cached here.
type Attachment struct {
	ID          int
	Name        string
	CreatedDate time.Time
	CreatedUser *User
	Size        int
	Description string
}

// NewAttachmentFromRow constructs an Attachment from an `A <id>
// <issueId> '<name>' <createdDate> <createdUser> <size>
// '<description>'` row.
func NewAttachmentFromRow(row protocol.Row, users *Collection[*User]) (*Attachment, error) {
	if err := row.RequireTag(protocol.TagAttachment); err != nil {
		return nil, err
	}
	if err := row.Require(7); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	created, err := row.Int64(3)
	if err != nil {
		return nil, err
	}
	userID, err := row.Int(4)
	if err != nil {
		return nil, err
	}
	size, err := row.Int(5)
	if err != nil {
		return nil, err
	}
	a := &Attachment{
		ID:          id,
		Name:        row.String(2),
		CreatedDate: time.Unix(created, 0),
		Size:        size,
		Description: row.String(6),
	}
	if users != nil {
		a.CreatedUser, _ = users.Get(userID)
	}
	return a, nil
}
