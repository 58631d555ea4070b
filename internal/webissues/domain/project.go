package domain

import (
	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
)

// Project is a named container of folders.
type Project struct {
	ID      int
	Name    string
	Folders *Collection[*Folder]
}

// NewProjectFromRow constructs a Project from a `P <id> '<name>'` row.
func NewProjectFromRow(row protocol.Row) (*Project, error) {
	if err := row.RequireTag(protocol.TagProject); err != nil {
		return nil, err
	}
	if err := row.Require(2); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	return &Project{
		ID:      id,
		Name:    row.String(1),
		Folders: NewCollection[*Folder](),
	}, nil
}

func (p *Project) EntityID() int      { return p.ID }
func (p *Project) EntityName() string { return p.Name }

// Folder is a named container of issues, belonging to one Project and
// typed by one IssueType. A folder always has both.
type Folder struct {
	ID      int
	Name    string
	Stamp   int
	Project *Project
	Type    *IssueType
	Issues  *Collection[*Issue]
}

// NewFolderFromRow constructs a Folder from an `F <id> <projectId>
// '<name>' <typeId> <stamp>` row. The parent project and the issue type
// must already be known; the server contract guarantees
// parent-before-child row ordering, so a missing parent is a protocol
// error surfaced by the caller.
func NewFolderFromRow(row protocol.Row, project *Project, issueType *IssueType) (*Folder, error) {
	if err := row.RequireTag(protocol.TagFolder); err != nil {
		return nil, err
	}
	if err := row.Require(5); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	stamp, err := row.Int(4)
	if err != nil {
		return nil, err
	}
	return &Folder{
		ID:      id,
		Name:    row.String(2),
		Stamp:   stamp,
		Project: project,
		Type:    issueType,
		Issues:  NewCollection[*Issue](),
	}, nil
}

func (f *Folder) EntityID() int      { return f.ID }
func (f *Folder) EntityName() string { return f.Name }
