// ABOUTME: Tests for the labmap CLI commands against a temporary SQLite directory
// ABOUTME: Password prompts are stubbed through readPassword

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/config"
	"github.com/2389/labmap/internal/store"
)

type cliEnv struct {
	dir    string
	config string
	dbPath string
}

// newCLIEnv writes a config pointing at a fresh SQLite file and isolates
// the XDG lookups from the developer's machine.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("LABMAP_CONFIG", "")

	env := &cliEnv{
		dir:    dir,
		config: filepath.Join(dir, "labmap.yaml"),
		dbPath: filepath.Join(dir, "labmap.db"),
	}
	yaml := "database:\n  driver: sqlite\n  path: \"" + env.dbPath + "\"\nlogging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(env.config, []byte(yaml), 0600))
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(e.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// stubPasswords answers successive prompts with answers, then io.EOF.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, io.EOF
		}
		a := answers[i]
		i++
		return []byte(a), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func TestUserAddAndList(t *testing.T) {
	env := newCLIEnv(t)
	stubPasswords(t, "s3cret", "s3cret")

	out, err := env.run(t, "user", "add", "admin@example.com", "--username", "root", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin@example.com (admin)")

	out, err = env.run(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "admin@example.com")
	assert.Contains(t, out, "root")

	s := env.openStore(t)
	res := auth.NewVerifier(s, nil).Verify(context.Background(), "root", "s3cret")
	assert.True(t, res.OK)
	assert.Equal(t, auth.RoleAdmin, res.Role)

	action := store.AuditCreateUser
	entries, err := s.ListAuditLog(context.Background(), store.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cliActor, entries[0].UserEmail)
}

func TestUserAdd_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		answers []string
		wantErr error
	}{
		{
			name:    "mismatched confirmation",
			args:    []string{"user", "add", "bob@example.com"},
			answers: []string{"one", "two"},
			wantErr: errPasswordMismatch,
		},
		{
			name:    "empty password",
			args:    []string{"user", "add", "bob@example.com"},
			answers: []string{""},
			wantErr: auth.ErrEmptyPassword,
		},
		{
			name:    "invalid role is checked before prompting",
			args:    []string{"user", "add", "bob@example.com", "--role", "owner"},
			wantErr: auth.ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			stubPasswords(t, tt.answers...)

			_, err := env.run(t, tt.args...)
			assert.ErrorIs(t, err, tt.wantErr)

			out, err := env.run(t, "user", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "No users.")
		})
	}
}

func TestUserAdd_Duplicate(t *testing.T) {
	env := newCLIEnv(t)
	stubPasswords(t, "pw", "pw", "pw", "pw")

	_, err := env.run(t, "user", "add", "bob@example.com")
	require.NoError(t, err)

	_, err = env.run(t, "user", "add", "bob@example.com")
	assert.ErrorIs(t, err, store.ErrUserExists)
}

func TestUserRoleAndPasswd(t *testing.T) {
	env := newCLIEnv(t)
	stubPasswords(t, "old", "old", "n3w", "n3w")

	_, err := env.run(t, "user", "add", "bob@example.com", "-u", "bob")
	require.NoError(t, err)

	out, err := env.run(t, "user", "role", "bob@example.com", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "bob@example.com is now admin")

	out, err = env.run(t, "user", "passwd", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Password reset for bob@example.com")

	s := env.openStore(t)
	got, err := s.GetUserByIdentifier(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("n3w")))

	// uid works as a reference too
	_, err = env.run(t, "user", "role", got.UID, "user")
	require.NoError(t, err)
}

func TestUserRole_Errors(t *testing.T) {
	env := newCLIEnv(t)
	stubPasswords(t, "pw", "pw")
	_, err := env.run(t, "user", "add", "bob@example.com")
	require.NoError(t, err)

	_, err = env.run(t, "user", "role", "ghost@example.com", "admin")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	_, err = env.run(t, "user", "role", "bob@example.com", "owner")
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	_, err = env.run(t, "user", "role", "bob@example.com")
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("LABMAP_TEST_PW", "from-env")

	seedPath := filepath.Join(env.dir, "users.toml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
[[users]]
email = "admin@example.com"
username = "admin"
role = "admin"
password = "${LABMAP_TEST_PW}"

[[users]]
email = "user@example.com"
password = "plain"
`), 0600))

	out, err := env.run(t, "seed", "--file", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 created, 0 skipped")

	out, err = env.run(t, "seed", "--file", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 created, 2 skipped")

	s := env.openStore(t)
	res := auth.NewVerifier(s, nil).Verify(context.Background(), "admin", "from-env")
	assert.True(t, res.OK)
	res = auth.NewVerifier(s, nil).Verify(context.Background(), "user@example.com", "plain")
	assert.True(t, res.OK)
	assert.Equal(t, auth.RoleUser, res.Role)
}

func TestSeed_InvalidFile(t *testing.T) {
	env := newCLIEnv(t)
	seedPath := filepath.Join(env.dir, "users.toml")
	require.NoError(t, os.WriteFile(seedPath, []byte("[[users]]\nemail = \"a@example.com\"\n"), 0600))

	_, err := env.run(t, "seed", "--file", seedPath)
	assert.ErrorContains(t, err, "password is required")
}

func TestHashPassword(t *testing.T) {
	env := newCLIEnv(t)
	stubPasswords(t, "password123", "password123")

	out, err := env.run(t, "hash-password")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("password123")))
}

func TestInit(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "fresh", "config.yaml")

	run := func(args ...string) (string, error) {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append([]string{"--config", path, "init"}, args...))
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	out, err := run()
	require.NoError(t, err)
	assert.Contains(t, out, "Created config: "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig, string(data))
	assert.FileExists(t, filepath.Join(env.dir, ".local", "share", "labmap", "labmap.db"))

	_, err = run()
	assert.ErrorContains(t, err, "already exists")

	_, err = run("--force")
	assert.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	env := newCLIEnv(t)

	cfg, path, err := (&app{}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.dir, "config", "labmap", "config.yaml"), path)
	assert.Equal(t, config.DefaultHTTPAddr, cfg.Server.HTTPAddr)

	_, _, err = (&app{configPath: filepath.Join(env.dir, "missing.yaml")}).loadConfig()
	assert.Error(t, err)

	cfg, _, err = (&app{configPath: env.config}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, env.dbPath, cfg.Database.Path)
}
