// ABOUTME: TOML user seed file parsing for `labmap seed`
// ABOUTME: Each [[users]] table describes one directory record to create

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// SeedUser is one account in a seed file.
type SeedUser struct {
	Email    string `toml:"email"`
	Username string `toml:"username"`
	Role     string `toml:"role"`
	Password string `toml:"password"`
}

// Seed is the content of a seed file.
type Seed struct {
	Users []SeedUser `toml:"users"`
}

// LoadSeed reads a TOML seed file. Environment variables are expanded first so
// passwords can stay out of the file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed Seed
	md, err := toml.Decode(expandEnvVars(string(data)), &seed)
	if err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing seed file: unknown key %q", undecoded[0].String())
	}

	for i, u := range seed.Users {
		if strings.TrimSpace(u.Email) == "" {
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		if u.Password == "" {
			return nil, fmt.Errorf("users[%d] %s: password is required", i, u.Email)
		}
	}
	if len(seed.Users) == 0 {
		return nil, errors.New("seed file has no [[users]]")
	}

	return &seed, nil
}
