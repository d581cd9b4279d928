// Package auth resolves the principal behind a request. Users come from an
// externally managed file; requests authenticate with HTTP Basic credentials
// or with a bearer token issued by this service.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

type User struct {
	Username     string   `mapstructure:"username"`
	PasswordHash string   `mapstructure:"password_hash"`
	Password     string   `mapstructure:"password"`
	Roles        []string `mapstructure:"roles"`
}

// Directory is a read-only set of users fixed at startup.
type Directory struct {
	users map[string]User
}

// NewDirectory hashes plain passwords with bcrypt; entries that already carry
// a hash are kept as is.
func NewDirectory(users ...User) (*Directory, error) {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return nil, errors.New("user without username")
		}
		if _, dup := d.users[u.Username]; dup {
			return nil, fmt.Errorf("user %q listed twice", u.Username)
		}
		if u.PasswordHash == "" {
			if u.Password == "" {
				return nil, fmt.Errorf("user %q has no password", u.Username)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password of %q: %w", u.Username, err)
			}
			u.PasswordHash = string(hash)
		}
		u.Password = ""
		d.users[u.Username] = u
	}
	return d, nil
}

// LoadDirectory reads the "users" list from a YAML, JSON or TOML file.
func LoadDirectory(path string) (*Directory, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var users []User
	if err := v.UnmarshalKey("users", &users); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	return NewDirectory(users...)
}

func (d *Directory) Len() int {
	return len(d.users)
}

func (d *Directory) Authenticate(username, password string) (models.Principal, error) {
	u, ok := d.users[username]
	if !ok {
		return models.Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return models.Principal{}, ErrInvalidCredentials
	}
	return models.Principal{Username: u.Username, Roles: append([]string(nil), u.Roles...)}, nil
}
