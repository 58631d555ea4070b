package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

// ConnectionState is the environment's connection lifecycle state.
// There are no partial states: the environment is fully online or a
// last-known offline snapshot.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateOnline
	StateOffline
)

func (s ConnectionState) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "disconnected"
	}
}

// Environment is the root aggregate of the cached entity model. It
// owns the user, issue-type and project collections, tracks the
// connection state, and orchestrates full and incremental reloads.
//
// All collection access goes through the environment's lock; full
// reloads build replacement collections off-lock and swap them in, so
// readers never observe a half-updated collection. Overlapping reloads
// against the same environment must be serialized by the caller.
type Environment struct {
	client *Client

	mu         sync.RWMutex
	state      ConnectionState
	users      *domain.Collection[*domain.User]
	types      *domain.Collection[*domain.IssueType]
	projects   *domain.Collection[*domain.Project]
	issues     map[int]*domain.Issue
	folderSync map[int]int // folder id -> stamp of last issue reload
	readStamps map[int]int // issue id -> read stamp from state rows
	stateStamp int         // stamp of last LIST STATES reload
}

// NewEnvironment creates a disconnected environment over the client.
func NewEnvironment(client *Client) *Environment {
	return &Environment{
		client:     client,
		users:      domain.NewCollection[*domain.User](),
		types:      domain.NewCollection[*domain.IssueType](),
		projects:   domain.NewCollection[*domain.Project](),
		issues:     make(map[int]*domain.Issue),
		folderSync: make(map[int]int),
		readStamps: make(map[int]int),
	}
}

// Client returns the underlying protocol client.
func (e *Environment) Client() *Client { return e.client }

// State returns the current connection state.
func (e *Environment) State() ConnectionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Server returns the server info from the most recent handshake, or
// nil when the environment was restored from a snapshot without a
// client.
func (e *Environment) Server() *domain.ServerInfo {
	if e.client == nil {
		return nil
	}
	return e.client.Session()
}

// Users returns the user collection. Callers must not mutate it.
func (e *Environment) Users() *domain.Collection[*domain.User] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.users
}

// Types returns the issue type collection. Callers must not mutate it.
func (e *Environment) Types() *domain.Collection[*domain.IssueType] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.types
}

// Projects returns the project collection. Callers must not mutate it.
func (e *Environment) Projects() *domain.Collection[*domain.Project] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.projects
}

// Folders returns all folders across projects in collection order.
func (e *Environment) Folders() []*domain.Folder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var folders []*domain.Folder
	for _, project := range e.projects.All() {
		folders = append(folders, project.Folders.All()...)
	}
	return folders
}

// FindIssue returns a cached issue by id.
func (e *Environment) FindIssue(id int) (*domain.Issue, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	issue, ok := e.issues[id]
	return issue, ok
}

// Connect validates the server with a HELLO exchange and brings the
// environment online.
func (e *Environment) Connect(ctx context.Context, monitor ProgressMonitor) error {
	if e.client == nil {
		return ErrNotConnected
	}
	rows, err := e.client.Execute(ctx, "HELLO", monitor)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Tag == protocol.TagServerInfo {
			info, err := domain.NewServerInfoFromRow(row)
			if err != nil {
				return err
			}
			e.client.setSession(info)
		}
	}
	e.mu.Lock()
	e.state = StateOnline
	e.mu.Unlock()
	log.Info(log.CatNet, "connected", "server", e.client.currentRealm())
	return nil
}

// GoOffline switches a connected environment to the offline snapshot
// state. Cached entities are retained.
func (e *Environment) GoOffline() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDisconnected {
		return ErrNotConnected
	}
	e.state = StateOffline
	return nil
}

// GoOnline re-validates the connection and leaves the offline state.
func (e *Environment) GoOnline(ctx context.Context, monitor ProgressMonitor) error {
	switch e.State() {
	case StateDisconnected:
		return ErrNotConnected
	case StateOnline:
		return nil
	}
	return e.Connect(ctx, monitor)
}

// Disconnect clears all cached entities and returns to the
// disconnected state. Valid in any state.
func (e *Environment) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateDisconnected
	e.users = domain.NewCollection[*domain.User]()
	e.types = domain.NewCollection[*domain.IssueType]()
	e.projects = domain.NewCollection[*domain.Project]()
	e.issues = make(map[int]*domain.Issue)
	e.folderSync = make(map[int]int)
	e.readStamps = make(map[int]int)
	e.stateStamp = 0
}

func (e *Environment) requireOnline() error {
	switch e.State() {
	case StateOnline:
		return nil
	case StateOffline:
		return ErrOffline
	default:
		return ErrNotConnected
	}
}

// ReloadAll performs a full reload of users, issue types (with their
// attributes and views) and projects (with their folders). The prior
// collections are swapped for the new ones on completion; issue caches
// are reset because every folder is replaced.
func (e *Environment) ReloadAll(ctx context.Context, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}

	users, err := e.loadUsers(ctx, monitor)
	if err != nil {
		return err
	}
	types, err := e.loadTypes(ctx, monitor)
	if err != nil {
		return err
	}
	projects, err := e.loadProjects(ctx, monitor, types)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.users = users
	e.types = types
	e.projects = projects
	e.issues = make(map[int]*domain.Issue)
	e.folderSync = make(map[int]int)
	e.mu.Unlock()
	log.Info(log.CatModel, "full reload complete",
		"users", users.Len(), "types", types.Len(), "projects", projects.Len())
	return nil
}

func (e *Environment) loadUsers(ctx context.Context, monitor ProgressMonitor) (*domain.Collection[*domain.User], error) {
	rows, err := e.client.Execute(ctx, "LIST USERS", monitor)
	if err != nil {
		return nil, err
	}
	users := domain.NewCollection[*domain.User]()
	for _, row := range rows {
		switch row.Tag {
		case protocol.TagUser:
			user, err := domain.NewUserFromRow(row)
			if err != nil {
				return nil, err
			}
			users.Put(user)
		default:
			e.skipRow(row)
		}
	}
	return users, nil
}

func (e *Environment) loadTypes(ctx context.Context, monitor ProgressMonitor) (*domain.Collection[*domain.IssueType], error) {
	rows, err := e.client.Execute(ctx, "LIST TYPES", monitor)
	if err != nil {
		return nil, err
	}
	types := domain.NewCollection[*domain.IssueType]()
	for _, row := range rows {
		switch row.Tag {
		case protocol.TagType:
			t, err := domain.NewIssueTypeFromRow(row)
			if err != nil {
				return nil, err
			}
			types.Put(t)
		case protocol.TagAttribute:
			owner, err := e.ownerType(row, 1, types)
			if err != nil {
				return nil, err
			}
			attr, err := domain.NewAttributeFromRow(row, owner)
			if err != nil {
				return nil, err
			}
			owner.Attributes.Put(attr)
		case protocol.TagView:
			owner, err := e.ownerType(row, 1, types)
			if err != nil {
				return nil, err
			}
			view, err := domain.NewViewFromRow(row, owner)
			if err != nil {
				return nil, err
			}
			owner.Views.Put(view)
		default:
			e.skipRow(row)
		}
	}
	return types, nil
}

// ownerType resolves the issue type referenced by a child row. The
// server contract guarantees parent-before-child ordering, so a
// missing parent is a fatal protocol violation.
func (e *Environment) ownerType(row protocol.Row, arg int, types *domain.Collection[*domain.IssueType]) (*domain.IssueType, error) {
	typeID, err := row.Int(arg)
	if err != nil {
		return nil, err
	}
	owner, ok := types.Get(typeID)
	if !ok {
		return nil, &protocol.MalformedLineError{
			Line:   row.Line(),
			Reason: fmt.Sprintf("row %q references issue type %d before its type row", row.RawTag, typeID),
		}
	}
	return owner, nil
}

func (e *Environment) loadProjects(ctx context.Context, monitor ProgressMonitor, types *domain.Collection[*domain.IssueType]) (*domain.Collection[*domain.Project], error) {
	rows, err := e.client.Execute(ctx, "LIST PROJECTS", monitor)
	if err != nil {
		return nil, err
	}
	projects := domain.NewCollection[*domain.Project]()
	for _, row := range rows {
		switch row.Tag {
		case protocol.TagProject:
			project, err := domain.NewProjectFromRow(row)
			if err != nil {
				return nil, err
			}
			projects.Put(project)
		case protocol.TagFolder:
			projectID, err := row.Int(1)
			if err != nil {
				return nil, err
			}
			project, ok := projects.Get(projectID)
			if !ok {
				return nil, &protocol.MalformedLineError{
					Line:   row.Line(),
					Reason: fmt.Sprintf("folder row references project %d before its project row", projectID),
				}
			}
			issueType, err := e.ownerType(row, 3, types)
			if err != nil {
				return nil, err
			}
			folder, err := domain.NewFolderFromRow(row, project, issueType)
			if err != nil {
				return nil, err
			}
			project.Folders.Put(folder)
		default:
			e.skipRow(row)
		}
	}
	return projects, nil
}

// ReloadFolder fetches the folder's issues. The first reload (stamp 0)
// replaces the folder's issue collection wholesale; later reloads
// request only rows changed since the last stamp and merge them in by
// id, with removals signalled by explicit deletion rows.
func (e *Environment) ReloadFolder(ctx context.Context, folder *domain.Folder, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}

	e.mu.RLock()
	since := e.folderSync[folder.ID]
	users := e.users
	e.mu.RUnlock()

	rows, err := e.client.Execute(ctx, fmt.Sprintf("LIST ISSUES %d %d", folder.ID, since), monitor)
	if err != nil {
		return err
	}

	full := since == 0
	issues := folder.Issues
	if full {
		issues = domain.NewCollection[*domain.Issue]()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	maxStamp := since
	var removed []int
	for _, row := range rows {
		switch row.Tag {
		case protocol.TagIssue:
			issue, err := domain.NewIssueFromRow(row, folder, users)
			if err != nil {
				return err
			}
			if existing, ok := issues.Get(issue.ID); ok && !full {
				// Update in place, retaining detail caches.
				issue.Comments = existing.Comments
				issue.Attachments = existing.Attachments
				issue.Changes = existing.Changes
			}
			issue.ReadStamp = e.readStamps[issue.ID]
			issues.Put(issue)
			if issue.Stamp > maxStamp {
				maxStamp = issue.Stamp
			}
		case protocol.TagValue:
			issueID, err := row.Int(1)
			if err != nil {
				return err
			}
			issue, ok := issues.Get(issueID)
			if !ok {
				return &protocol.MalformedLineError{
					Line:   row.Line(),
					Reason: fmt.Sprintf("value row references issue %d before its issue row", issueID),
				}
			}
			if err := issue.ApplyValueRow(row); err != nil {
				return err
			}
		case protocol.TagDelete:
			if err := row.Require(2); err != nil {
				return err
			}
			id, err := row.Int(1)
			if err != nil {
				return err
			}
			if row.String(0) == string(protocol.TagIssue) {
				issues.Remove(id)
				removed = append(removed, id)
			}
		default:
			e.skipRow(row)
		}
	}

	if full {
		// Swap on completion; drop the old issues from the index.
		for _, old := range folder.Issues.All() {
			delete(e.issues, old.ID)
		}
		folder.Issues = issues
	}
	for _, id := range removed {
		delete(e.issues, id)
	}
	for _, issue := range folder.Issues.All() {
		e.issues[issue.ID] = issue
	}
	e.folderSync[folder.ID] = maxStamp
	log.Debug(log.CatModel, "folder reloaded",
		"folder", folder.Name, "issues", folder.Issues.Len(), "stamp", maxStamp)
	return nil
}

// ReloadStates fetches per-issue read stamps changed since the last
// state reload. An issue is unread while its read stamp is zero or
// differs from its own stamp.
func (e *Environment) ReloadStates(ctx context.Context, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}

	e.mu.RLock()
	since := e.stateStamp
	e.mu.RUnlock()

	rows, err := e.client.Execute(ctx, fmt.Sprintf("LIST STATES %d", since), monitor)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, row := range rows {
		if row.Tag != protocol.TagState {
			e.skipRow(row)
			continue
		}
		if err := row.Require(2); err != nil {
			return err
		}
		issueID, err := row.Int(0)
		if err != nil {
			return err
		}
		readStamp, err := row.Int(1)
		if err != nil {
			return err
		}
		e.readStamps[issueID] = readStamp
		if issue, ok := e.issues[issueID]; ok {
			issue.ReadStamp = readStamp
		}
		if readStamp > e.stateStamp {
			e.stateStamp = readStamp
		}
	}
	return nil
}

// ReloadDetails fetches an issue's comments, attachments and changes,
// replacing any cached details.
func (e *Environment) ReloadDetails(ctx context.Context, issue *domain.Issue, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}

	e.mu.RLock()
	users := e.users
	e.mu.RUnlock()

	rows, err := e.client.Execute(ctx, fmt.Sprintf("GET DETAILS %d 0", issue.ID), monitor)
	if err != nil {
		return err
	}

	var (
		comments    []*domain.Comment
		attachments []*domain.Attachment
		changes     []*domain.Change
	)
	for _, row := range rows {
		switch row.Tag {
		case protocol.TagComment:
			c, err := domain.NewCommentFromRow(row, users)
			if err != nil {
				return err
			}
			comments = append(comments, c)
		case protocol.TagAttachment:
			a, err := domain.NewAttachmentFromRow(row, users)
			if err != nil {
				return err
			}
			attachments = append(attachments, a)
		case protocol.TagChange:
			c, err := domain.NewChangeFromRow(row, users)
			if err != nil {
				return err
			}
			changes = append(changes, c)
		default:
			e.skipRow(row)
		}
	}

	e.mu.Lock()
	issue.Comments = comments
	issue.Attachments = attachments
	issue.Changes = changes
	e.mu.Unlock()
	return nil
}

// UpdateAttribute sets one attribute value on the server. With force
// set a failure is returned to the caller; otherwise it is recorded
// and logged, and the cached value is left unchanged.
func (e *Environment) UpdateAttribute(ctx context.Context, issue *domain.Issue, attributeID int, value string, force bool, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	command := fmt.Sprintf("UPDATE ISSUE %d %d %s", issue.ID, attributeID, protocol.Quote(value))
	if _, err := e.client.Execute(ctx, command, monitor); err != nil {
		if force {
			return err
		}
		log.ErrorErr(log.CatModel, "attribute update failed", err,
			"issue", issue.ID, "attribute", attributeID)
		return nil
	}
	e.mu.Lock()
	issue.Values[attributeID] = value
	e.mu.Unlock()
	return nil
}

// RenameFolder renames a folder on the server and in the cache.
func (e *Environment) RenameFolder(ctx context.Context, folder *domain.Folder, name string, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	command := fmt.Sprintf("RENAME FOLDER %d %s", folder.ID, protocol.Quote(name))
	if _, err := e.client.Execute(ctx, command, monitor); err != nil {
		return err
	}
	e.mu.Lock()
	folder.Name = name
	e.mu.Unlock()
	return nil
}

// DeleteFolder deletes a folder on the server and removes it from its
// project and the issue caches.
func (e *Environment) DeleteFolder(ctx context.Context, folder *domain.Folder, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	if _, err := e.client.Execute(ctx, fmt.Sprintf("DELETE FOLDER %d", folder.ID), monitor); err != nil {
		return err
	}
	e.mu.Lock()
	for _, issue := range folder.Issues.All() {
		delete(e.issues, issue.ID)
	}
	folder.Project.Folders.Remove(folder.ID)
	delete(e.folderSync, folder.ID)
	e.mu.Unlock()
	return nil
}

// RenameView renames a view on the server and in the cache.
func (e *Environment) RenameView(ctx context.Context, view *domain.View, name string, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	command := fmt.Sprintf("RENAME VIEW %d %s", view.ID, protocol.Quote(name))
	if _, err := e.client.Execute(ctx, command, monitor); err != nil {
		return err
	}
	e.mu.Lock()
	view.Name = name
	e.mu.Unlock()
	return nil
}

// DeleteView deletes a view on the server and from its issue type.
func (e *Environment) DeleteView(ctx context.Context, view *domain.View, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	if _, err := e.client.Execute(ctx, fmt.Sprintf("DELETE VIEW %d", view.ID), monitor); err != nil {
		return err
	}
	e.mu.Lock()
	view.Type.Views.Remove(view.ID)
	e.mu.Unlock()
	return nil
}

// PublishView sets a view's public flag on the server and in the cache.
func (e *Environment) PublishView(ctx context.Context, view *domain.View, public bool, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	flag := 0
	if public {
		flag = 1
	}
	if _, err := e.client.Execute(ctx, fmt.Sprintf("PUBLISH VIEW %d %d", view.ID, flag), monitor); err != nil {
		return err
	}
	e.mu.Lock()
	view.Public = public
	e.mu.Unlock()
	return nil
}

// ModifyView replaces a view's definition on the server and in the
// cache.
func (e *Environment) ModifyView(ctx context.Context, view *domain.View, def *domain.ViewDefinition, monitor ProgressMonitor) error {
	if err := e.requireOnline(); err != nil {
		return err
	}
	command := fmt.Sprintf("MODIFY VIEW %d %s", view.ID, protocol.Quote(def.Serialize()))
	if _, err := e.client.Execute(ctx, command, monitor); err != nil {
		return err
	}
	e.mu.Lock()
	view.Definition = def
	e.mu.Unlock()
	return nil
}

func (e *Environment) skipRow(row protocol.Row) {
	log.Debug(log.CatModel, "skipping unexpected row", "tag", row.RawTag)
}
