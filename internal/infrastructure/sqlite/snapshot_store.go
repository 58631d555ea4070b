package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application"
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

// ErrNoSnapshot indicates the database holds no saved snapshot.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore persists environment snapshots. A database holds one
// snapshot; Save replaces whatever is stored.
type SnapshotStore struct {
	db *sql.DB
}

func newSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save writes the snapshot in a single transaction, replacing any
// previous one.
func (s *SnapshotStore) Save(snapshot *application.Snapshot) (retErr error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting snapshot transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	// Parent tables cascade to their children. Projects go before
	// issue types because folders reference both.
	for _, table := range []string{"snapshot_meta", "read_states", "projects", "issue_types", "users"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	meta := map[string]string{
		"server_name":    snapshot.ServerName,
		"server_version": snapshot.ServerVersion,
		"state_stamp":    fmt.Sprintf("%d", snapshot.StateStamp),
	}
	for key, value := range meta {
		if _, err := tx.Exec(`INSERT INTO snapshot_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("writing snapshot meta: %w", err)
		}
	}

	for _, user := range snapshot.Users {
		if _, err := tx.Exec(`INSERT INTO users (id, login, name, access) VALUES (?, ?, ?, ?)`,
			user.ID, user.Login, user.Name, int(user.Access)); err != nil {
			return fmt.Errorf("writing user %d: %w", user.ID, err)
		}
	}

	for _, issueType := range snapshot.Types {
		if err := saveType(tx, issueType); err != nil {
			return err
		}
	}

	for _, project := range snapshot.Projects {
		if err := saveProject(tx, project, snapshot.FolderSync); err != nil {
			return err
		}
	}

	for issueID, readStamp := range snapshot.ReadStamps {
		if _, err := tx.Exec(`INSERT INTO read_states (issue_id, read_stamp) VALUES (?, ?)`,
			issueID, readStamp); err != nil {
			return fmt.Errorf("writing read state for issue %d: %w", issueID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func saveType(tx *sql.Tx, issueType *domain.IssueType) error {
	if _, err := tx.Exec(`INSERT INTO issue_types (id, name) VALUES (?, ?)`,
		issueType.ID, issueType.Name); err != nil {
		return fmt.Errorf("writing issue type %d: %w", issueType.ID, err)
	}
	for _, attr := range issueType.Attributes.All() {
		if _, err := tx.Exec(
			`INSERT INTO attributes (id, type_id, name, data_type, required, read_only, date_only)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			attr.ID, issueType.ID, attr.Name, string(attr.Type),
			boolToInt(attr.Required), boolToInt(attr.ReadOnly), boolToInt(attr.DateOnly)); err != nil {
			return fmt.Errorf("writing attribute %d: %w", attr.ID, err)
		}
		for i, item := range attr.Items {
			if _, err := tx.Exec(`INSERT INTO attribute_items (attribute_id, position, value) VALUES (?, ?, ?)`,
				attr.ID, i, item); err != nil {
				return fmt.Errorf("writing items of attribute %d: %w", attr.ID, err)
			}
		}
	}
	for _, view := range issueType.Views.All() {
		if _, err := tx.Exec(
			`INSERT INTO views (id, type_id, name, public, definition) VALUES (?, ?, ?, ?, ?)`,
			view.ID, issueType.ID, view.Name, boolToInt(view.Public), view.Definition.Serialize()); err != nil {
			return fmt.Errorf("writing view %d: %w", view.ID, err)
		}
	}
	return nil
}

func saveProject(tx *sql.Tx, project *domain.Project, folderSync map[int]int) error {
	if _, err := tx.Exec(`INSERT INTO projects (id, name) VALUES (?, ?)`,
		project.ID, project.Name); err != nil {
		return fmt.Errorf("writing project %d: %w", project.ID, err)
	}
	for _, folder := range project.Folders.All() {
		if _, err := tx.Exec(
			`INSERT INTO folders (id, project_id, type_id, name, stamp, sync_stamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			folder.ID, project.ID, folder.Type.ID, folder.Name, folder.Stamp, folderSync[folder.ID]); err != nil {
			return fmt.Errorf("writing folder %d: %w", folder.ID, err)
		}
		for _, issue := range folder.Issues.All() {
			if err := saveIssue(tx, folder, issue); err != nil {
				return err
			}
		}
	}
	return nil
}

func saveIssue(tx *sql.Tx, folder *domain.Folder, issue *domain.Issue) error {
	if _, err := tx.Exec(
		`INSERT INTO issues (id, folder_id, name, stamp, created_date, created_user, modified_date, modified_user, read_stamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, folder.ID, issue.Name, issue.Stamp,
		issue.CreatedDate.Unix(), userID(issue.CreatedUser),
		issue.ModifiedDate.Unix(), userID(issue.ModifiedUser),
		issue.ReadStamp); err != nil {
		return fmt.Errorf("writing issue %d: %w", issue.ID, err)
	}
	for attrID, value := range issue.Values {
		if _, err := tx.Exec(`INSERT INTO issue_values (issue_id, attribute_id, value) VALUES (?, ?, ?)`,
			issue.ID, attrID, value); err != nil {
			return fmt.Errorf("writing values of issue %d: %w", issue.ID, err)
		}
	}
	for _, comment := range issue.Comments {
		if _, err := tx.Exec(
			`INSERT INTO comments (id, issue_id, created_date, created_user, body) VALUES (?, ?, ?, ?, ?)`,
			comment.ID, issue.ID, comment.CreatedDate.Unix(), userID(comment.CreatedUser), comment.Text); err != nil {
			return fmt.Errorf("writing comments of issue %d: %w", issue.ID, err)
		}
	}
	for _, attachment := range issue.Attachments {
		if _, err := tx.Exec(
			`INSERT INTO attachments (id, issue_id, name, created_date, created_user, size, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			attachment.ID, issue.ID, attachment.Name, attachment.CreatedDate.Unix(),
			userID(attachment.CreatedUser), attachment.Size, attachment.Description); err != nil {
			return fmt.Errorf("writing attachments of issue %d: %w", issue.ID, err)
		}
	}
	for _, change := range issue.Changes {
		if _, err := tx.Exec(
			`INSERT INTO changes (id, issue_id, created_date, created_user, attribute_id, old_value, new_value)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			change.ID, issue.ID, change.CreatedDate.Unix(), userID(change.CreatedUser),
			change.AttributeID, change.OldValue, change.NewValue); err != nil {
			return fmt.Errorf("writing changes of issue %d: %w", issue.ID, err)
		}
	}
	return nil
}

// Load reconstructs the stored snapshot, or returns ErrNoSnapshot for
// an empty database.
func (s *SnapshotStore) Load() (*application.Snapshot, error) {
	snapshot := &application.Snapshot{
		FolderSync: make(map[int]int),
		ReadStamps: make(map[int]int),
	}

	found := false
	rows, err := s.db.Query(`SELECT key, value FROM snapshot_meta`)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot meta: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			_ = rows.Close()
			return nil, err
		}
		found = true
		switch key {
		case "server_name":
			snapshot.ServerName = value
		case "server_version":
			snapshot.ServerVersion = value
		case "state_stamp":
			_, _ = fmt.Sscanf(value, "%d", &snapshot.StateStamp)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if !found {
		return nil, ErrNoSnapshot
	}

	users, userIndex, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	snapshot.Users = users

	types, typeIndex, err := s.loadTypes()
	if err != nil {
		return nil, err
	}
	snapshot.Types = types

	projects, err := s.loadProjects(typeIndex, userIndex, snapshot.FolderSync)
	if err != nil {
		return nil, err
	}
	snapshot.Projects = projects

	stateRows, err := s.db.Query(`SELECT issue_id, read_stamp FROM read_states`)
	if err != nil {
		return nil, fmt.Errorf("reading read states: %w", err)
	}
	defer func() { _ = stateRows.Close() }()
	for stateRows.Next() {
		var issueID, readStamp int
		if err := stateRows.Scan(&issueID, &readStamp); err != nil {
			return nil, err
		}
		snapshot.ReadStamps[issueID] = readStamp
	}
	if err := stateRows.Err(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (s *SnapshotStore) loadUsers() ([]*domain.User, map[int]*domain.User, error) {
	rows, err := s.db.Query(`SELECT id, login, name, access FROM users ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("reading users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*domain.User
	index := make(map[int]*domain.User)
	for rows.Next() {
		var user domain.User
		var access int
		if err := rows.Scan(&user.ID, &user.Login, &user.Name, &access); err != nil {
			return nil, nil, err
		}
		user.Access = domain.AccessLevel(access)
		users = append(users, &user)
		index[user.ID] = &user
	}
	return users, index, rows.Err()
}

func (s *SnapshotStore) loadTypes() ([]*domain.IssueType, map[int]*domain.IssueType, error) {
	rows, err := s.db.Query(`SELECT id, name FROM issue_types ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("reading issue types: %w", err)
	}
	var types []*domain.IssueType
	index := make(map[int]*domain.IssueType)
	for rows.Next() {
		issueType := &domain.IssueType{
			Attributes: domain.NewCollection[*domain.Attribute](),
			Views:      domain.NewCollection[*domain.View](),
		}
		if err := rows.Scan(&issueType.ID, &issueType.Name); err != nil {
			_ = rows.Close()
			return nil, nil, err
		}
		types = append(types, issueType)
		index[issueType.ID] = issueType
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, nil, err
	}
	_ = rows.Close()

	if err := s.loadAttributes(index); err != nil {
		return nil, nil, err
	}
	if err := s.loadViews(index); err != nil {
		return nil, nil, err
	}
	return types, index, nil
}

func (s *SnapshotStore) loadAttributes(types map[int]*domain.IssueType) error {
	rows, err := s.db.Query(
		`SELECT id, type_id, name, data_type, required, read_only, date_only FROM attributes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading attributes: %w", err)
	}
	attrs := make(map[int]*domain.Attribute)
	for rows.Next() {
		var attr domain.Attribute
		var typeID int
		var dataType string
		var required, readOnly, dateOnly int
		if err := rows.Scan(&attr.ID, &typeID, &attr.Name, &dataType, &required, &readOnly, &dateOnly); err != nil {
			_ = rows.Close()
			return err
		}
		attr.Type = domain.AttributeType(dataType)
		attr.Required = required != 0
		attr.ReadOnly = readOnly != 0
		attr.DateOnly = dateOnly != 0
		if owner, ok := types[typeID]; ok {
			owner.Attributes.Put(&attr)
			attrs[attr.ID] = &attr
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	itemRows, err := s.db.Query(`SELECT attribute_id, value FROM attribute_items ORDER BY attribute_id, position`)
	if err != nil {
		return fmt.Errorf("reading attribute items: %w", err)
	}
	defer func() { _ = itemRows.Close() }()
	for itemRows.Next() {
		var attrID int
		var value string
		if err := itemRows.Scan(&attrID, &value); err != nil {
			return err
		}
		if attr, ok := attrs[attrID]; ok {
			attr.Items = append(attr.Items, value)
		}
	}
	return itemRows.Err()
}

func (s *SnapshotStore) loadViews(types map[int]*domain.IssueType) error {
	rows, err := s.db.Query(`SELECT id, type_id, name, public, definition FROM views ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading views: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id, typeID, public int
		var name, definition string
		if err := rows.Scan(&id, &typeID, &name, &public, &definition); err != nil {
			return err
		}
		owner, ok := types[typeID]
		if !ok {
			continue
		}
		def, err := domain.ParseViewDefinition(definition, owner)
		if err != nil {
			return fmt.Errorf("parsing stored view %d: %w", id, err)
		}
		owner.Views.Put(&domain.View{
			ID:         id,
			Name:       name,
			Type:       owner,
			Public:     public != 0,
			Definition: def,
		})
	}
	return rows.Err()
}

func (s *SnapshotStore) loadProjects(types map[int]*domain.IssueType, users map[int]*domain.User, folderSync map[int]int) ([]*domain.Project, error) {
	rows, err := s.db.Query(`SELECT id, name FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading projects: %w", err)
	}
	var projects []*domain.Project
	index := make(map[int]*domain.Project)
	for rows.Next() {
		project := &domain.Project{Folders: domain.NewCollection[*domain.Folder]()}
		if err := rows.Scan(&project.ID, &project.Name); err != nil {
			_ = rows.Close()
			return nil, err
		}
		projects = append(projects, project)
		index[project.ID] = project
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	folders, err := s.loadFolders(index, types, folderSync)
	if err != nil {
		return nil, err
	}
	if err := s.loadIssues(folders, users); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *SnapshotStore) loadFolders(projects map[int]*domain.Project, types map[int]*domain.IssueType, folderSync map[int]int) (map[int]*domain.Folder, error) {
	rows, err := s.db.Query(`SELECT id, project_id, type_id, name, stamp, sync_stamp FROM folders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	folders := make(map[int]*domain.Folder)
	for rows.Next() {
		var id, projectID, typeID, stamp, syncStamp int
		var name string
		if err := rows.Scan(&id, &projectID, &typeID, &name, &stamp, &syncStamp); err != nil {
			return nil, err
		}
		project, ok := projects[projectID]
		if !ok {
			continue
		}
		issueType, ok := types[typeID]
		if !ok {
			return nil, fmt.Errorf("stored folder %d references unknown issue type %d", id, typeID)
		}
		folder := &domain.Folder{
			ID:      id,
			Name:    name,
			Stamp:   stamp,
			Project: project,
			Type:    issueType,
			Issues:  domain.NewCollection[*domain.Issue](),
		}
		project.Folders.Put(folder)
		folders[id] = folder
		if syncStamp > 0 {
			folderSync[id] = syncStamp
		}
	}
	return folders, rows.Err()
}

func (s *SnapshotStore) loadIssues(folders map[int]*domain.Folder, users map[int]*domain.User) error {
	rows, err := s.db.Query(
		`SELECT id, folder_id, name, stamp, created_date, created_user, modified_date, modified_user, read_stamp
		 FROM issues ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading issues: %w", err)
	}
	index := make(map[int]*domain.Issue)
	for rows.Next() {
		var id, folderID, stamp, readStamp int
		var name string
		var createdDate, modifiedDate int64
		var createdUser, modifiedUser sql.NullInt64
		if err := rows.Scan(&id, &folderID, &name, &stamp, &createdDate, &createdUser,
			&modifiedDate, &modifiedUser, &readStamp); err != nil {
			_ = rows.Close()
			return err
		}
		folder, ok := folders[folderID]
		if !ok {
			continue
		}
		issue := &domain.Issue{
			ID:           id,
			Name:         name,
			Stamp:        stamp,
			Folder:       folder,
			CreatedDate:  time.Unix(createdDate, 0),
			ModifiedDate: time.Unix(modifiedDate, 0),
			Values:       make(map[int]string),
			ReadStamp:    readStamp,
		}
		if createdUser.Valid {
			issue.CreatedUser = users[int(createdUser.Int64)]
		}
		if modifiedUser.Valid {
			issue.ModifiedUser = users[int(modifiedUser.Int64)]
		}
		folder.Issues.Put(issue)
		index[id] = issue
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	if err := s.loadValues(index); err != nil {
		return err
	}
	return s.loadDetails(index, users)
}

func (s *SnapshotStore) loadValues(issues map[int]*domain.Issue) error {
	rows, err := s.db.Query(`SELECT issue_id, attribute_id, value FROM issue_values`)
	if err != nil {
		return fmt.Errorf("reading issue values: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var issueID, attrID int
		var value string
		if err := rows.Scan(&issueID, &attrID, &value); err != nil {
			return err
		}
		if issue, ok := issues[issueID]; ok {
			issue.Values[attrID] = value
		}
	}
	return rows.Err()
}

func (s *SnapshotStore) loadDetails(issues map[int]*domain.Issue, users map[int]*domain.User) error {
	commentRows, err := s.db.Query(
		`SELECT id, issue_id, created_date, created_user, body FROM comments ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading comments: %w", err)
	}
	for commentRows.Next() {
		var id, issueID int
		var created int64
		var createdUser sql.NullInt64
		var body string
		if err := commentRows.Scan(&id, &issueID, &created, &createdUser, &body); err != nil {
			_ = commentRows.Close()
			return err
		}
		issue, ok := issues[issueID]
		if !ok {
			continue
		}
		comment := &domain.Comment{ID: id, CreatedDate: time.Unix(created, 0), Text: body}
		if createdUser.Valid {
			comment.CreatedUser = users[int(createdUser.Int64)]
		}
		issue.Comments = append(issue.Comments, comment)
	}
	if err := commentRows.Err(); err != nil {
		_ = commentRows.Close()
		return err
	}
	_ = commentRows.Close()

	attachmentRows, err := s.db.Query(
		`SELECT id, issue_id, name, created_date, created_user, size, description FROM attachments ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading attachments: %w", err)
	}
	for attachmentRows.Next() {
		var id, issueID, size int
		var created int64
		var createdUser sql.NullInt64
		var name, description string
		if err := attachmentRows.Scan(&id, &issueID, &name, &created, &createdUser, &size, &description); err != nil {
			_ = attachmentRows.Close()
			return err
		}
		issue, ok := issues[issueID]
		if !ok {
			continue
		}
		attachment := &domain.Attachment{
			ID:          id,
			Name:        name,
			CreatedDate: time.Unix(created, 0),
			Size:        size,
			Description: description,
		}
		if createdUser.Valid {
			attachment.CreatedUser = users[int(createdUser.Int64)]
		}
		issue.Attachments = append(issue.Attachments, attachment)
	}
	if err := attachmentRows.Err(); err != nil {
		_ = attachmentRows.Close()
		return err
	}
	_ = attachmentRows.Close()

	changeRows, err := s.db.Query(
		`SELECT id, issue_id, created_date, created_user, attribute_id, old_value, new_value FROM changes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading changes: %w", err)
	}
	defer func() { _ = changeRows.Close() }()
	for changeRows.Next() {
		var id, issueID, attrID int
		var created int64
		var createdUser sql.NullInt64
		var oldValue, newValue string
		if err := changeRows.Scan(&id, &issueID, &created, &createdUser, &attrID, &oldValue, &newValue); err != nil {
			return err
		}
		issue, ok := issues[issueID]
		if !ok {
			continue
		}
		change := &domain.Change{
			ID:          id,
			CreatedDate: time.Unix(created, 0),
			AttributeID: attrID,
			OldValue:    oldValue,
			NewValue:    newValue,
		}
		if createdUser.Valid {
			change.CreatedUser = users[int(createdUser.Int64)]
		}
		issue.Changes = append(issue.Changes, change)
	}
	return changeRows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func userID(user *domain.User) any {
	if user == nil {
		return nil
	}
	return user.ID
}
