package main

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// session is the logged-in identity persisted between invocations. The
// protocol is stateless, so this is purely client-side convenience: the
// stored user id is attached to requests as user_id or operator_id.
type session struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shelfctl.json"
	}
	return filepath.Join(home, ".shelfctl.json")
}

func loadSession(path string) (*session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", path, err)
	}
	return &s, nil
}

func saveSession(path string, s *session) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func clearSession(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// requireSession returns the stored identity or an instruction to log in.
func requireSession(path string) (*session, error) {
	s, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("not logged in, run `shelfctl login` first")
	}
	return s, nil
}
