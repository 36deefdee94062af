package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/actionflow/pkg/actionflow/deadletter"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// run executes the root command with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedDB writes two dead letters to a fresh database and returns its path.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deadletter.db")
	q, err := deadletter.NewSQLiteQueue(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &deadletter.Record{
		OccurrenceID: "o1",
		Logic:        "fetch",
		Stage:        "process",
		EventID:      "evt-o1",
		EventType:    "FOO",
		EventData:    []byte(`{"id":1}`),
		Error:        "boom",
		FailedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, q.Enqueue(ctx, &deadletter.Record{
		OccurrenceID: "o2",
		Logic:        "audit",
		Stage:        "validate",
		EventID:      "evt-o2",
		EventType:    "BAR",
		EventData:    []byte("not json"),
		Error:        "bad input",
		FailedAt:     time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC),
	}))
	require.NoError(t, q.Close())
	return path
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := run(t, "config", "check", "testdata/settings.yaml", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestConfigCheck(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := run(t, "config", "check", "testdata/settings.yaml")
		require.NoError(t, err)
		newGoldie(t).Assert(t, "config_check_text", []byte(out))
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "config", "check", "testdata/settings.yaml", "--format", "json")
		require.NoError(t, err)

		var resp struct {
			Status string       `json:"status"`
			Data   settingsView `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "30s", resp.Data.WarnTimeout)
		assert.Equal(t, "memory", resp.Data.DeadLetter.Driver)
		require.Contains(t, resp.Data.Logics, "fetch-user")
		assert.Equal(t, "user.id > 0", resp.Data.Logics["fetch-user"].When)
		assert.True(t, resp.Data.Logics["audit"].Disabled)
	})

	t.Run("invalid", func(t *testing.T) {
		out, err := run(t, "config", "check", "testdata/invalid.yaml", "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp Response
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "invalid_settings", resp.Error.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "config", "check", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("requires one file", func(t *testing.T) {
		_, err := run(t, "config", "check")
		assert.Error(t, err)
	})
}

func TestDLQList(t *testing.T) {
	db := seedDB(t)

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "dlq", "list", "--db", db, "--format", "json")
		require.NoError(t, err)
		newGoldie(t).Assert(t, "dlq_list_json", []byte(out))
	})

	t.Run("text", func(t *testing.T) {
		out, err := run(t, "dlq", "list", "--db", db)
		require.NoError(t, err)
		assert.Equal(t,
			"2024-05-01T12:00:00Z  o1  fetch/process  FOO  boom\n"+
				"2024-05-01T12:05:00Z  o2  audit/validate  BAR  bad input\n",
			out)
	})

	t.Run("by type with limit", func(t *testing.T) {
		out, err := run(t, "dlq", "list", "--db", db, "--type", "BAR", "--limit", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "o2")
		assert.NotContains(t, out, "o1")
	})

	t.Run("missing database", func(t *testing.T) {
		_, err := run(t, "dlq", "list", "--db", filepath.Join(t.TempDir(), "missing.db"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("db flag required", func(t *testing.T) {
		_, err := run(t, "dlq", "list")
		assert.Error(t, err)
	})
}

func TestDLQCount(t *testing.T) {
	db := seedDB(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "total",
			args: []string{"dlq", "count", "--db", db},
			want: "2 dead letter(s)\n",
		},
		{
			name: "by logic",
			args: []string{"dlq", "count", "--db", db, "--by-logic"},
			want: "2 dead letter(s)\n  audit: 1\n  fetch: 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestDLQAck(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "dlq", "ack", "--db", db, "o1", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "acknowledged o1\nnot found missing\n", out)

	out, err = run(t, "dlq", "count", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   countView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Total)

	out, err = run(t, "dlq", "ack", "--db", db, "o2")
	require.NoError(t, err)
	assert.Equal(t, "acknowledged o2\n", out)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", assert.AnError, ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped", WrapExitError(ExitFailure, "list", assert.AnError), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}
