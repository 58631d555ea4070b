package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application"
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSnapshot() *application.Snapshot {
	alice := &domain.User{ID: 4, Login: "alice", Name: "Alice", Access: domain.AccessAdmin}
	bob := &domain.User{ID: 7, Login: "bob", Name: "Bob", Access: domain.AccessNormal}

	bugType := &domain.IssueType{
		ID:         2,
		Name:       "Bug Report",
		Attributes: domain.NewCollection[*domain.Attribute](),
		Views:      domain.NewCollection[*domain.View](),
	}
	severity := &domain.Attribute{ID: 1, Name: "Severity", Type: domain.AttrNumeric}
	status := &domain.Attribute{
		ID: 2, Name: "Status", Type: domain.AttrEnum,
		Required: true, Items: []string{"active", "closed"},
	}
	bugType.Attributes.Put(severity)
	bugType.Attributes.Put(status)
	bugType.Views.Put(&domain.View{
		ID:     5,
		Name:   "All Bugs",
		Type:   bugType,
		Public: true,
		Definition: &domain.ViewDefinition{
			Columns: []domain.Column{domain.ColumnName, domain.ColumnForAttribute(status)},
			Conditions: []domain.Condition{
				{Column: domain.ColumnForAttribute(status), Op: domain.OpEQ, Value: "active"},
			},
			SortColumn: domain.ColumnModifiedDate,
			SortDesc:   true,
		},
	})

	project := &domain.Project{ID: 10, Name: "Webissues", Folders: domain.NewCollection[*domain.Folder]()}
	folder := &domain.Folder{
		ID: 20, Name: "Bugs", Stamp: 105,
		Project: project, Type: bugType,
		Issues: domain.NewCollection[*domain.Issue](),
	}
	project.Folders.Put(folder)

	issue := &domain.Issue{
		ID:           100,
		Name:         "Crash on startup",
		Stamp:        101,
		Folder:       folder,
		CreatedDate:  time.Unix(1268610000, 0),
		CreatedUser:  alice,
		ModifiedDate: time.Unix(1268611000, 0),
		ModifiedUser: bob,
		Values:       map[int]string{1: "5", 2: "active"},
		ReadStamp:    101,
		Comments: []*domain.Comment{
			{ID: 50, CreatedDate: time.Unix(1268612000, 0), CreatedUser: bob, Text: "Cannot reproduce"},
		},
		Attachments: []*domain.Attachment{
			{ID: 51, Name: "trace.log", CreatedDate: time.Unix(1268613000, 0), CreatedUser: alice, Size: 2048, Description: "Stack trace"},
		},
		Changes: []*domain.Change{
			{ID: 52, CreatedDate: time.Unix(1268614000, 0), CreatedUser: alice, AttributeID: 2, OldValue: "active", NewValue: "closed"},
		},
	}
	folder.Issues.Put(issue)

	return &application.Snapshot{
		ServerName:    "My Tracker",
		ServerVersion: "1.0.5",
		Users:         []*domain.User{alice, bob},
		Types:         []*domain.IssueType{bugType},
		Projects:      []*domain.Project{project},
		FolderSync:    map[int]int{20: 101},
		ReadStamps:    map[int]int{100: 101, 999: 50},
		StateStamp:    101,
	}
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	db := openTestDB(t)
	store := db.SnapshotStore()

	require.NoError(t, store.Save(testSnapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "My Tracker", loaded.ServerName)
	assert.Equal(t, "1.0.5", loaded.ServerVersion)
	assert.Equal(t, 101, loaded.StateStamp)
	assert.Equal(t, map[int]int{20: 101}, loaded.FolderSync)
	assert.Equal(t, map[int]int{100: 101, 999: 50}, loaded.ReadStamps)

	require.Len(t, loaded.Users, 2)
	assert.Equal(t, "alice", loaded.Users[0].Login)
	assert.Equal(t, domain.AccessAdmin, loaded.Users[0].Access)

	require.Len(t, loaded.Types, 1)
	bugType := loaded.Types[0]
	assert.Equal(t, "Bug Report", bugType.Name)
	status, ok := bugType.Attributes.Get(2)
	require.True(t, ok)
	assert.Equal(t, domain.AttrEnum, status.Type)
	assert.True(t, status.Required)
	assert.Equal(t, []string{"active", "closed"}, status.Items)

	view, ok := bugType.Views.Get(5)
	require.True(t, ok)
	assert.True(t, view.Public)
	assert.Equal(t, []domain.Column{domain.ColumnName, domain.ColumnForAttribute(status)}, view.Definition.Columns)
	require.Len(t, view.Definition.Conditions, 1)
	assert.Equal(t, domain.OpEQ, view.Definition.Conditions[0].Op)
	assert.Equal(t, "active", view.Definition.Conditions[0].Value)
	assert.Equal(t, domain.ColumnModifiedDate, view.Definition.SortColumn)
	assert.True(t, view.Definition.SortDesc)

	require.Len(t, loaded.Projects, 1)
	project := loaded.Projects[0]
	folder, ok := project.Folders.Get(20)
	require.True(t, ok)
	assert.Equal(t, project, folder.Project)
	assert.Equal(t, bugType, folder.Type)
	assert.Equal(t, 105, folder.Stamp)

	issue, ok := folder.Issues.Get(100)
	require.True(t, ok)
	assert.Equal(t, "Crash on startup", issue.Name)
	assert.Equal(t, 101, issue.Stamp)
	assert.Equal(t, 101, issue.ReadStamp)
	assert.False(t, issue.Unread())
	assert.Equal(t, map[int]string{1: "5", 2: "active"}, issue.Values)
	require.NotNil(t, issue.CreatedUser)
	assert.Equal(t, "alice", issue.CreatedUser.Login)
	require.NotNil(t, issue.ModifiedUser)
	assert.Equal(t, "bob", issue.ModifiedUser.Login)

	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "Cannot reproduce", issue.Comments[0].Text)
	require.Len(t, issue.Attachments, 1)
	assert.Equal(t, 2048, issue.Attachments[0].Size)
	require.Len(t, issue.Changes, 1)
	assert.Equal(t, "closed", issue.Changes[0].NewValue)
}

func TestSnapshotStore_SaveReplacesPrevious(t *testing.T) {
	db := openTestDB(t)
	store := db.SnapshotStore()

	require.NoError(t, store.Save(testSnapshot()))

	second := testSnapshot()
	second.ServerName = "Other Tracker"
	second.Projects = nil
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Other Tracker", loaded.ServerName)
	assert.Empty(t, loaded.Projects)
}

func TestSnapshotStore_LoadEmpty(t *testing.T) {
	db := openTestDB(t)
	_, err := db.SnapshotStore().Load()
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotStore_RoundTripThroughEnvironment(t *testing.T) {
	db := openTestDB(t)
	store := db.SnapshotStore()
	require.NoError(t, store.Save(testSnapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)

	env := application.NewEnvironment(nil)
	env.RestoreSnapshot(loaded)
	assert.Equal(t, application.StateOffline, env.State())
	issue, ok := env.FindIssue(100)
	require.True(t, ok)
	assert.Equal(t, "Crash on startup", issue.Name)
}
