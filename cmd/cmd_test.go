package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashsync/internal/models"
)

type fakeDashboard struct {
	mu        sync.Mutex
	dismissed []string
}

func newFakeDashboard(t *testing.T, messages []models.Message) (*httptest.Server, *fakeDashboard) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fd := &fakeDashboard{}

	router := gin.New()
	router.GET("/conversations/:id/messages", func(c *gin.Context) {
		lastID, _ := strconv.ParseInt(c.Query("last_id"), 10, 64)
		out := make([]models.Message, 0)
		for _, m := range messages {
			if m.ID > lastID {
				out = append(out, m)
			}
		}
		c.JSON(http.StatusOK, out)
	})
	router.POST("/outliers/:id/dismiss", func(c *gin.Context) {
		id := c.Param("id")
		if id == "locked" {
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		fd.mu.Lock()
		fd.dismissed = append(fd.dismissed, id)
		fd.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, fd
}

func writeConfig(t *testing.T, values map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	data, err := json.Marshal(values)
	require.NoError(t, err)
	path := filepath.Join(dir, "dashsync.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	configPath, verbose, assumeYes = "", false, false
	conversationPath, initialLastID, pollInterval, serveAddr = "", 0, 0, ""

	// cobra keeps a subcommand's context once set; drop the previous run's.
	for _, sub := range rootCmd.Commands() {
		sub.SetContext(nil)
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestDismissThenStatusTTL(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"server_url": "http://127.0.0.1:1",
		"log_level":  "error",
		"dismissal":  map[string]any{"mode": "ttl", "ttl": "504h", "store": "sqlite3"},
		"databases":  map[string]any{"sqlite3": map[string]any{"dsn": "dismissals.db"}},
	})

	out, _, err := execute(t, context.Background(), "--config", path, "dismiss", "--yes", "o1")
	require.NoError(t, err)
	assert.Contains(t, out, "dismissed o1 (ttl)")

	out, _, err = execute(t, context.Background(), "--config", path, "status", "o1", "o2")
	require.NoError(t, err)
	assert.Contains(t, out, "o1\tdismissed\tvisible again")
	assert.Contains(t, out, "from now")
	assert.Contains(t, out, "o2\tvisible")
}

func TestSweepKeepsLiveRecords(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"server_url": "http://127.0.0.1:1",
		"log_level":  "error",
		"dismissal":  map[string]any{"mode": "ttl", "store": "sqlite3"},
		"databases":  map[string]any{"sqlite3": map[string]any{"dsn": "dismissals.db"}},
	})

	_, _, err := execute(t, context.Background(), "--config", path, "dismiss", "--yes", "o1")
	require.NoError(t, err)
	out, _, err := execute(t, context.Background(), "--config", path, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 expired dismissal records")

	out, _, err = execute(t, context.Background(), "--config", path, "status", "o1")
	require.NoError(t, err)
	assert.Contains(t, out, "o1\tdismissed")
}

func TestPromptConfirmer(t *testing.T) {
	var out bytes.Buffer
	p := &promptConfirmer{in: strings.NewReader("y\n"), out: &out, interactive: true}
	assert.True(t, p.Confirm(context.Background(), "Remove?"))
	assert.Contains(t, out.String(), "Remove? [y/N]: ")

	p = &promptConfirmer{in: strings.NewReader("\n"), out: &out, interactive: true}
	assert.False(t, p.Confirm(context.Background(), "Remove?"), "empty answer means no")

	out.Reset()
	p = &promptConfirmer{in: strings.NewReader("y\n"), out: &out}
	assert.False(t, p.Confirm(context.Background(), "Remove?"))
	assert.Contains(t, out.String(), "pass --yes")

	p = &promptConfirmer{assumeYes: true}
	assert.True(t, p.Confirm(context.Background(), "Remove?"))
}

func TestDismissServerMode(t *testing.T) {
	srv, fd := newFakeDashboard(t, nil)
	path := writeConfig(t, map[string]any{
		"server_url": srv.URL,
		"log_level":  "error",
		"dismissal":  map[string]any{"mode": "server"},
	})

	out, _, err := execute(t, context.Background(), "--config", path, "dismiss", "--yes", "o1")
	require.NoError(t, err)
	assert.Contains(t, out, "dismissed o1 (server)")
	assert.Equal(t, []string{"o1"}, fd.dismissed)

	_, stderr, err := execute(t, context.Background(), "--config", path, "dismiss", "--yes", "locked")
	require.Error(t, err)
	assert.Contains(t, stderr, "Could not remove the outlier warning")

	out, _, err = execute(t, context.Background(), "--config", path, "status", "o1")
	require.NoError(t, err)
	assert.Contains(t, out, "o1\tvisible")
}

func TestWatchPrintsNewMessages(t *testing.T) {
	srv, _ := newFakeDashboard(t, []models.Message{
		{ID: 4, Sender: "bob", Content: "already seen", Timestamp: "09:59"},
		{ID: 5, Sender: "bob", Content: "hello there", Timestamp: "10:00"},
		{ID: 6, Sender: "alice", Content: "hi bob", Timestamp: "10:01"},
	})
	path := writeConfig(t, map[string]any{
		"server_url":   srv.URL,
		"current_user": "alice",
		"log_level":    "error",
		"dismissal":    map[string]any{"mode": "ttl", "store": "memory"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	out, stderr, err := execute(t, ctx, "--config", path, "watch",
		"--conversation", "/conversations/42", "--last-id", "4", "--interval", "20ms")
	require.NoError(t, err)
	assert.NotContains(t, out, "already seen")
	assert.Equal(t, 1, strings.Count(out, "hello there"))
	assert.Equal(t, 1, strings.Count(out, "hi bob"))
	assert.Contains(t, stderr, "stopped at message 6")
}

func TestWatchUsesEachRunsContext(t *testing.T) {
	srv, _ := newFakeDashboard(t, []models.Message{
		{ID: 8, Sender: "bob", Content: "again", Timestamp: "11:00"},
	})
	path := writeConfig(t, map[string]any{
		"server_url": srv.URL,
		"log_level":  "error",
		"dismissal":  map[string]any{"mode": "ttl", "store": "memory"},
	})

	for run := 0; run < 2; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		out, stderr, err := execute(t, ctx, "--config", path, "watch",
			"--conversation", "/conversations/7", "--interval", "20ms")
		cancel()
		require.NoError(t, err)
		assert.Contains(t, out, "again", "run %d", run)
		assert.Contains(t, stderr, "stopped at message 8", "run %d", run)
	}
}

func TestInvalidModeFailsBeforeRunning(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"server_url": "http://127.0.0.1:1",
		"dismissal":  map[string]any{"mode": "sometimes"},
	})
	_, _, err := execute(t, context.Background(), "--config", path, "status", "o1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dismissal mode")
}
