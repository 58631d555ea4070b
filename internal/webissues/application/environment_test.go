package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

// scriptedTransport answers each command from a response table keyed by
// the exact command line.
type scriptedTransport struct {
	fakeTransport
	responses map[string]string
}

func newScriptedTransport(responses map[string]string) *scriptedTransport {
	t := &scriptedTransport{responses: responses}
	t.respond = func(command string) (string, error) {
		body, ok := t.responses[command]
		if !ok {
			return "", fmt.Errorf("unscripted command %q", command)
		}
		return body, nil
	}
	return t
}

const (
	helloResponse = "O 'My Tracker' '1.0.5' 4 2\n"

	usersResponse = "U 4 'alice' 'Alice' 2\n" +
		"U 7 'bob' 'Bob' 1\n"

	typesResponse = "T 2 'Bug Report'\n" +
		"M 1 2 'Severity' 'NUMERIC'\n" +
		"M 2 2 'Status' 'ENUM required=1 items={\"active\",\"closed\"}'\n" +
		"W 5 2 'All Bugs' 1 'VIEW columns=1001,1'\n"

	projectsResponse = "P 10 'Webissues'\n" +
		"F 20 10 'Bugs' 2 105\n" +
		"F 21 10 'Features' 2 90\n"
)

func connectedEnvironment(t *testing.T, extra map[string]string) (*Environment, *scriptedTransport) {
	t.Helper()
	resetAuthAttempts(t)
	responses := map[string]string{
		"HELLO":         helloResponse,
		"LIST USERS":    usersResponse,
		"LIST TYPES":    typesResponse,
		"LIST PROJECTS": projectsResponse,
	}
	for command, body := range extra {
		responses[command] = body
	}
	transport := newScriptedTransport(responses)
	env := NewEnvironment(NewClient(transport, &fakeCreds{}))
	require.NoError(t, env.Connect(context.Background(), nil))
	require.NoError(t, env.ReloadAll(context.Background(), nil))
	return env, transport
}

func TestEnvironment_ConnectAndReloadAll(t *testing.T) {
	env, _ := connectedEnvironment(t, nil)

	assert.Equal(t, StateOnline, env.State())
	require.NotNil(t, env.Server())
	assert.Equal(t, "My Tracker", env.Server().Name)

	assert.Equal(t, 2, env.Users().Len())
	alice, ok := env.Users().ByName("alice")
	require.True(t, ok)
	assert.Equal(t, domain.AccessAdmin, alice.Access)

	bugType, ok := env.Types().Get(2)
	require.True(t, ok)
	assert.Equal(t, 2, bugType.Attributes.Len())
	status, ok := bugType.Attributes.Get(2)
	require.True(t, ok)
	assert.Equal(t, domain.AttrEnum, status.Type)
	assert.True(t, status.Required)
	assert.Equal(t, []string{"active", "closed"}, status.Items)

	severity, ok := bugType.Attributes.Get(1)
	require.True(t, ok)
	view, ok := bugType.Views.Get(5)
	require.True(t, ok)
	assert.True(t, view.Public)
	assert.Equal(t, []domain.Column{domain.ColumnName, domain.ColumnForAttribute(severity)}, view.Definition.Columns)
}

func TestEnvironment_ReloadAllLinksFoldersToTypesAndProjects(t *testing.T) {
	env, _ := connectedEnvironment(t, nil)

	project, ok := env.Projects().Get(10)
	require.True(t, ok)
	assert.Equal(t, 2, project.Folders.Len())

	bugs, ok := project.Folders.ByName("Bugs")
	require.True(t, ok)
	assert.Equal(t, project, bugs.Project)
	require.NotNil(t, bugs.Type)
	assert.Equal(t, "Bug Report", bugs.Type.Name)
	assert.Equal(t, 105, bugs.Stamp)

	assert.Len(t, env.Folders(), 2)
}

func TestEnvironment_ChildBeforeParentIsFatal(t *testing.T) {
	resetAuthAttempts(t)
	transport := newScriptedTransport(map[string]string{
		"HELLO":      helloResponse,
		"LIST USERS": usersResponse,
		"LIST TYPES": "M 1 2 'Severity' 'NUMERIC'\n" +
			"T 2 'Bug Report'\n",
	})
	env := NewEnvironment(NewClient(transport, &fakeCreds{}))
	require.NoError(t, env.Connect(context.Background(), nil))

	err := env.ReloadAll(context.Background(), nil)
	var merr *protocol.MalformedLineError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Reason, "before its type row")
}

func TestEnvironment_ReloadFolder_FullThenIncremental(t *testing.T) {
	env, transport := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0": "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n" +
			"V 1 100 '5'\n" +
			"V 2 100 'active'\n" +
			"I 101 20 'Wrong label' 95 1268600000 7 1268600000 7\n",
		"LIST ISSUES 20 101": "I 100 20 'Crash on startup' 110 1268610000 4 1268620000 4\n" +
			"V 2 100 'closed'\n" +
			"D I 101\n",
	})

	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)

	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))
	assert.Equal(t, 2, folder.Issues.Len())
	crash, ok := folder.Issues.Get(100)
	require.True(t, ok)
	assert.Equal(t, "5", crash.Values[1])
	assert.Equal(t, "active", crash.Values[2])
	require.NotNil(t, crash.CreatedUser)
	assert.Equal(t, "alice", crash.CreatedUser.Login)
	_, ok = env.FindIssue(101)
	assert.True(t, ok)

	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))
	assert.Equal(t, 1, folder.Issues.Len())
	crash, ok = folder.Issues.Get(100)
	require.True(t, ok)
	assert.Equal(t, 110, crash.Stamp)
	assert.Equal(t, "closed", crash.Values[2])
	_, ok = env.FindIssue(101)
	assert.False(t, ok)

	sent := transport.sent()
	assert.Contains(t, sent, "LIST ISSUES 20 0")
	assert.Contains(t, sent, "LIST ISSUES 20 101")
}

func TestEnvironment_ReloadFolder_ValueBeforeIssueIsFatal(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0": "V 1 100 '5'\n",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)

	err := env.ReloadFolder(context.Background(), folder, nil)
	var merr *protocol.MalformedLineError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Reason, "before its issue row")
}

func TestEnvironment_ReloadStates(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0": "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n",
		"LIST STATES 0":    "S 100 101\nS 999 50\n",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)
	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))

	issue, _ := env.FindIssue(100)
	assert.True(t, issue.Unread())

	require.NoError(t, env.ReloadStates(context.Background(), nil))
	assert.Equal(t, 101, issue.ReadStamp)
	assert.False(t, issue.Unread())
}

func TestEnvironment_ReadStampSurvivesFolderReload(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"LIST STATES 0":    "S 100 101\n",
		"LIST ISSUES 20 0": "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n",
	})
	require.NoError(t, env.ReloadStates(context.Background(), nil))

	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)
	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))

	issue, _ := env.FindIssue(100)
	assert.Equal(t, 101, issue.ReadStamp)
	assert.False(t, issue.Unread())
}

func TestEnvironment_ReloadDetails(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0": "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n",
		"GET DETAILS 100 0": "C 50 100 1268612000 7 'Cannot reproduce'\n" +
			"A 51 100 'trace.log' 1268613000 4 2048 'Stack trace'\n" +
			"H 52 100 1268614000 4 2 'active' 'closed'\n",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)
	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))
	issue, _ := env.FindIssue(100)

	require.NoError(t, env.ReloadDetails(context.Background(), issue, nil))
	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "Cannot reproduce", issue.Comments[0].Text)
	assert.Equal(t, "bob", issue.Comments[0].CreatedUser.Login)
	require.Len(t, issue.Attachments, 1)
	assert.Equal(t, "trace.log", issue.Attachments[0].Name)
	assert.Equal(t, 2048, issue.Attachments[0].Size)
	require.Len(t, issue.Changes, 1)
	assert.Equal(t, "closed", issue.Changes[0].NewValue)
}

func TestEnvironment_StateMachine(t *testing.T) {
	env, _ := connectedEnvironment(t, nil)

	require.NoError(t, env.GoOffline())
	assert.Equal(t, StateOffline, env.State())
	assert.ErrorIs(t, env.ReloadAll(context.Background(), nil), ErrOffline)

	// Cached entities remain browsable offline.
	assert.Equal(t, 2, env.Users().Len())

	require.NoError(t, env.GoOnline(context.Background(), nil))
	assert.Equal(t, StateOnline, env.State())

	env.Disconnect()
	assert.Equal(t, StateDisconnected, env.State())
	assert.Zero(t, env.Users().Len())
	assert.Zero(t, env.Projects().Len())
	assert.ErrorIs(t, env.ReloadAll(context.Background(), nil), ErrNotConnected)
	assert.ErrorIs(t, env.GoOffline(), ErrNotConnected)
	assert.ErrorIs(t, env.GoOnline(context.Background(), nil), ErrNotConnected)
}

func TestEnvironment_UpdateAttribute(t *testing.T) {
	env, transport := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0":          "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n",
		"UPDATE ISSUE 100 2 'done'": "",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)
	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))
	issue, _ := env.FindIssue(100)

	require.NoError(t, env.UpdateAttribute(context.Background(), issue, 2, "done", false, nil))
	assert.Equal(t, "done", issue.Values[2])
	assert.Contains(t, transport.sent(), "UPDATE ISSUE 100 2 'done'")
}

func TestEnvironment_UpdateAttributeFailure(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0":          "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n",
		"UPDATE ISSUE 100 2 'done'": "E NO_ACCESS 'Access denied'\n",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)
	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))
	issue, _ := env.FindIssue(100)

	// Without force the failure is recorded, not returned.
	require.NoError(t, env.UpdateAttribute(context.Background(), issue, 2, "done", false, nil))
	assert.NotContains(t, issue.Values, 2)
	var perr *ProtocolError
	require.ErrorAs(t, env.Client().LastError(), &perr)

	err := env.UpdateAttribute(context.Background(), issue, 2, "done", true, nil)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "NO_ACCESS", perr.Code)
}

func TestEnvironment_FolderAndViewMutations(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"RENAME FOLDER 21 'Ideas'":  "",
		"DELETE FOLDER 21":          "",
		"RENAME VIEW 5 'Open Bugs'": "",
		"PUBLISH VIEW 5 0":          "",
		"DELETE VIEW 5":             "",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(21)
	bugType, _ := env.Types().Get(2)
	view, _ := bugType.Views.Get(5)

	require.NoError(t, env.RenameFolder(context.Background(), folder, "Ideas", nil))
	assert.Equal(t, "Ideas", folder.Name)

	require.NoError(t, env.RenameView(context.Background(), view, "Open Bugs", nil))
	assert.Equal(t, "Open Bugs", view.Name)

	require.NoError(t, env.PublishView(context.Background(), view, false, nil))
	assert.False(t, view.Public)

	require.NoError(t, env.DeleteView(context.Background(), view, nil))
	_, ok := bugType.Views.Get(5)
	assert.False(t, ok)

	require.NoError(t, env.DeleteFolder(context.Background(), folder, nil))
	_, ok = project.Folders.Get(21)
	assert.False(t, ok)
}

func TestEnvironment_SnapshotRestore(t *testing.T) {
	env, _ := connectedEnvironment(t, map[string]string{
		"LIST ISSUES 20 0": "I 100 20 'Crash on startup' 101 1268610000 4 1268611000 7\n",
		"LIST STATES 0":    "S 100 101\n",
	})
	project, _ := env.Projects().Get(10)
	folder, _ := project.Folders.Get(20)
	require.NoError(t, env.ReloadFolder(context.Background(), folder, nil))
	require.NoError(t, env.ReloadStates(context.Background(), nil))

	snapshot := env.Snapshot()
	assert.Equal(t, "My Tracker", snapshot.ServerName)
	assert.Equal(t, "1.0.5", snapshot.ServerVersion)

	restored := NewEnvironment(NewClient(newScriptedTransport(nil), &fakeCreds{}))
	restored.RestoreSnapshot(snapshot)

	assert.Equal(t, StateOffline, restored.State())
	assert.Equal(t, 2, restored.Users().Len())
	issue, ok := restored.FindIssue(100)
	require.True(t, ok)
	assert.Equal(t, "Crash on startup", issue.Name)
	assert.Equal(t, 101, issue.ReadStamp)
	assert.ErrorIs(t, restored.ReloadAll(context.Background(), nil), ErrOffline)
}

func TestEnvironment_ConnectFailureLeavesDisconnected(t *testing.T) {
	resetAuthAttempts(t)
	transport := newScriptedTransport(map[string]string{
		"HELLO": "E SERVER_ERROR 'Maintenance'\n",
	})
	env := NewEnvironment(NewClient(transport, &fakeCreds{}))

	err := env.Connect(context.Background(), nil)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateDisconnected, env.State())
}
