package application

import (
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

// Snapshot is a point-in-time capture of the environment's entity
// model, suitable for persistence and later offline restoration. The
// entity slices reference the live objects; treat a snapshot as
// read-only once taken.
type Snapshot struct {
	ServerName    string
	ServerVersion string

	Users    []*domain.User
	Types    []*domain.IssueType
	Projects []*domain.Project

	FolderSync map[int]int
	ReadStamps map[int]int
	StateStamp int
}

// Snapshot captures the current entity model. Issues are reachable
// through each project's folders.
func (e *Environment) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := &Snapshot{
		Users:      e.users.All(),
		Types:      e.types.All(),
		Projects:   e.projects.All(),
		FolderSync: make(map[int]int, len(e.folderSync)),
		ReadStamps: make(map[int]int, len(e.readStamps)),
		StateStamp: e.stateStamp,
	}
	for id, stamp := range e.folderSync {
		s.FolderSync[id] = stamp
	}
	for id, stamp := range e.readStamps {
		s.ReadStamps[id] = stamp
	}
	if e.client != nil {
		if info := e.client.Session(); info != nil {
			s.ServerName = info.Name
			s.ServerVersion = info.Version
		}
	}
	return s
}

// RestoreSnapshot installs a previously captured entity model and puts
// the environment in the offline state, ready for cached browsing
// until GoOnline re-validates the connection.
func (e *Environment) RestoreSnapshot(s *Snapshot) {
	users := domain.NewCollection[*domain.User]()
	for _, u := range s.Users {
		users.Put(u)
	}
	types := domain.NewCollection[*domain.IssueType]()
	for _, t := range s.Types {
		types.Put(t)
	}
	projects := domain.NewCollection[*domain.Project]()
	issues := make(map[int]*domain.Issue)
	for _, p := range s.Projects {
		projects.Put(p)
		for _, folder := range p.Folders.All() {
			for _, issue := range folder.Issues.All() {
				issues[issue.ID] = issue
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.users = users
	e.types = types
	e.projects = projects
	e.issues = issues
	e.folderSync = make(map[int]int, len(s.FolderSync))
	for id, stamp := range s.FolderSync {
		e.folderSync[id] = stamp
	}
	e.readStamps = make(map[int]int, len(s.ReadStamps))
	for id, stamp := range s.ReadStamps {
		e.readStamps[id] = stamp
	}
	e.stateStamp = s.StateStamp
	e.state = StateOffline
}
