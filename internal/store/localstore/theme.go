package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ThemeKey names the persisted display theme.
const ThemeKey = "theme"

// Theme values.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ThemeFile stores the display theme next to the todos file. It is usable
// with any backend, since the theme is a local preference.
type ThemeFile struct {
	path string
}

// NewThemeFile returns a ThemeFile under dir.
func NewThemeFile(dir string) *ThemeFile {
	return &ThemeFile{path: filepath.Join(dir, ThemeKey+".json")}
}

// Load returns the saved theme, or ThemeDark when none is saved or the file
// is unreadable.
func (f *ThemeFile) Load() string {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return ThemeDark
	}
	var theme string
	if err := json.Unmarshal(b, &theme); err != nil {
		return ThemeDark
	}
	if theme != ThemeLight {
		return ThemeDark
	}
	return theme
}

// Save persists theme. Only ThemeDark and ThemeLight are accepted.
func (f *ThemeFile) Save(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return errors.New("theme must be dark or light")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	b, err := json.Marshal(theme)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return writeFileAtomic(f.path, b)
}
