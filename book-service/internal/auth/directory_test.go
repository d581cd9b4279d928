package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
)

const usersYAML = `
users:
  - username: user
    password: user
    roles: [USER]
  - username: admin
    password: admin
    roles: [USER, ADMIN]
`

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(usersYAML), 0o600))

	dir, err := LoadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	p, err := dir.Authenticate("admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)
	assert.Equal(t, []string{consts.RoleUser, consts.RoleAdmin}, p.Roles)

	_, err = dir.Authenticate("admin", "user")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = dir.Authenticate("nobody", "user")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoadDirectory_JSON(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pa55"), bcrypt.MinCost)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "users.json")
	body := `{"users":[{"username":"ops","password_hash":"` + string(hash) + `","roles":["ADMIN"]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	dir, err := LoadDirectory(path)
	require.NoError(t, err)

	p, err := dir.Authenticate("ops", "pa55")
	require.NoError(t, err)
	assert.Equal(t, []string{consts.RoleAdmin}, p.Roles)
}

func TestLoadDirectory_MissingFile(t *testing.T) {
	_, err := LoadDirectory(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewDirectory_Rejects(t *testing.T) {
	_, err := NewDirectory(User{Password: "x"})
	assert.Error(t, err)

	_, err = NewDirectory(User{Username: "user"})
	assert.Error(t, err)

	_, err = NewDirectory(User{Username: "user", Password: "a"}, User{Username: "user", Password: "b"})
	assert.Error(t, err)
}
