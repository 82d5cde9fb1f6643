package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greader-sync/models"
	"greader-sync/service"
)

// setupCLIEnv points the configuration at a throwaway sqlite file and one FreshRSS account
func setupCLIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCOUNTS_FILE", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", t.TempDir()+"/sync.db")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("ADMIN_TOKEN_SECRET", "")
	t.Setenv("ADMIN_TOKEN_SECRET_FILE", "")
	t.Setenv("GREADER_ACCOUNT_ID", "home")
	t.Setenv("GREADER_PROVIDER", "freshrss")
	t.Setenv("GREADER_URL", "https://rss.example.com/api/greader.php")
	t.Setenv("GREADER_USERNAME", "alice")
	t.Setenv("GREADER_PASSWORD", "secret")
	t.Setenv("GREADER_PASSWORD_FILE", "")
	t.Setenv("GREADER_TOKEN_STORE", "")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_SubcommandsList(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"serve", "sync", "tree", "user-info", "runs", "mark", "token", "health", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := runCLI(t, "nonexistent-command")
	assert.Error(t, err)
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	// an invalid config must not matter for version
	t.Setenv("DB_DRIVER", "oracle")
	SetVersion("1.4.0")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "greader-sync 1.4.0"))
}

func TestRunsCmd_EmptyHistory(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "runs", "home", "--limit", "5", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))

	_, err = runCLI(t, "runs", "missing")
	assert.ErrorContains(t, err, `unknown account "missing"`)
}

func TestMarkCmd_RejectsUnknownState(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, "mark", "home", "archived", "tag:google.com,2005:reader/item/1")
	assert.ErrorContains(t, err, `unknown state "archived"`)
}

func TestSyncCmd_FeedNeedsOneAccount(t *testing.T) {
	setupCLIEnv(t)
	t.Cleanup(func() {
		flag := syncCmd.Flags().Lookup("feed")
		if v, ok := flag.Value.(interface{ Replace([]string) error }); ok {
			_ = v.Replace(nil)
		}
		flag.Changed = false
	})

	_, err := runCLI(t, "sync", "--feed", "feed/3")
	assert.ErrorContains(t, err, "--feed needs exactly one account, got 0")

	_, err = runCLI(t, "sync", "home", "work", "--feed", "feed/3")
	assert.ErrorContains(t, err, "--feed needs exactly one account, got 2")
}

func TestTokenIssueCmd(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, "token", "issue")
	assert.ErrorContains(t, err, "ADMIN_TOKEN_SECRET")

	t.Setenv("ADMIN_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	out, err := runCLI(t, "token", "issue", "--subject", "ops", "--account", "home", "--ttl", "1h")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestTokenStatusCmd_PasswordAccount(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, "token", "status", "home")
	assert.ErrorContains(t, err, "does not use OAuth")
}

func TestViewTree(t *testing.T) {
	tree := models.NewTree()
	tech := tree.Append(tree.Root(), models.Node{Kind: models.NodeCategory, CustomID: "user/-/label/Tech", Title: "Tech"})
	tree.Append(tech, models.Node{Kind: models.NodeFeed, CustomID: "feed/1", Title: "Go Blog", Source: "https://go.dev/blog", Icon: []byte{1}})
	tree.Append(tree.Root(), models.Node{Kind: models.NodeFeed, CustomID: "feed/2", Title: "Loose"})
	labels := tree.Append(tree.Root(), models.Node{Kind: models.NodeLabels, Title: "Labels"})
	tree.Append(labels, models.Node{Kind: models.NodeLabel, CustomID: "user/-/label/Later", Title: "Later", Color: "#ff0000"})

	view := viewTree(tree)

	require.Len(t, view.Categories, 1)
	assert.Equal(t, "Tech", view.Categories[0].Title)
	require.Len(t, view.Categories[0].Feeds, 1)
	assert.True(t, view.Categories[0].Feeds[0].HasIcon)
	require.Len(t, view.Feeds, 1)
	assert.Equal(t, "feed/2", view.Feeds[0].ID)
	require.Len(t, view.Labels, 1)
	assert.Equal(t, "#ff0000", view.Labels[0].Color)
}

func TestWriteOutput(t *testing.T) {
	value := map[string]int{"feeds": 3}
	tests := map[string]struct {
		format  string
		want    string
		wantErr bool
	}{
		"json":                   {format: "json", want: "{\n  \"feeds\": 3\n}\n"},
		"default":                {format: "", want: "{\n  \"feeds\": 3\n}\n"},
		"yaml":                   {format: "yaml", want: "feeds: 3\n"},
		"xml":                    {format: "xml", wantErr: true},
		"table of a plain value": {format: "table", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			err := writeOutput(&buf, tc.format, value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestWriteOutput_Table(t *testing.T) {
	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	history := runHistory{{
		AccountID:     "home",
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		GlobalFetch:   true,
		FeedsTotal:    12,
		FeedsFailed:   1,
		MessagesSaved: 40,
		Status:        "partial",
	}}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "table", history))

	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "STARTED")
	for _, want := range []string{"global", "1.5s", "12", "40", "partial"} {
		assert.Contains(t, out, want)
	}
}

func TestSyncResults_TableRows(t *testing.T) {
	results := syncResults{
		{AccountID: "home", Report: &service.CycleReport{Status: "normal", FeedsTotal: 3, MessagesSaved: 7}},
		{AccountID: "work", Error: "circuit breaker open"},
	}

	rows := results.tableRows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"home", "3", "0", "7"}, []string{rows[0][0], rows[0][2], rows[0][3], rows[0][4]})
	assert.Contains(t, rows[0][1], "normal")
	assert.Equal(t, "-", rows[1][2])
	assert.Equal(t, "circuit breaker open", rows[1][5])
}
