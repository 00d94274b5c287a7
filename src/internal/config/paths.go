package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnsureDirectories creates the data and media directories and checks that
// both are writable.
func EnsureDirectories(v *viper.Viper) error {
	paths := map[string]string{
		"data":  expandPath(v.GetString("paths.data")),
		"media": expandPath(v.GetString("media.path")),
	}

	for name, dir := range paths {
		if dir == "" {
			return fmt.Errorf("%s path is empty", name)
		}
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("cannot create %s directory %s: %w", name, dir, err)
		}

		testFile := filepath.Join(dir, ".casrecipes-test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("no write permission for %s directory %s: %w", name, dir, err)
		}
		os.Remove(testFile)
	}

	return nil
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return filepath.Clean(path)
}
