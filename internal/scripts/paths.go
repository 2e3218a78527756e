package scripts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SearchPaths returns script directories in precedence order.
func SearchPaths(projectDir string) []string {
	paths := make([]string, 0, 2)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".pbd", "scripts"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "pbd", "scripts"))
	}
	return paths
}

// LoadFromSearchPaths loads scripts from the search paths and the built-ins.
// The first script found with a given name wins.
func LoadFromSearchPaths(projectDir string) ([]*Script, error) {
	seen := make(map[string]*Script)

	for _, dir := range SearchPaths(projectDir) {
		found, err := LoadScriptsFromDir(dir)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			if _, exists := seen[s.Name]; !exists {
				seen[s.Name] = s
			}
		}
	}

	builtins, err := LoadBuiltinScripts()
	if err != nil {
		return nil, err
	}
	for _, s := range builtins {
		if _, exists := seen[s.Name]; !exists {
			seen[s.Name] = s
		}
	}

	scripts := make([]*Script, 0, len(seen))
	for _, s := range seen {
		scripts = append(scripts, s)
	}
	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

// Resolve loads ref as a file path when it exists, otherwise looks it up by
// name in the search paths.
func Resolve(projectDir, ref string) (*Script, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return LoadScript(ref)
	}

	scripts, err := LoadFromSearchPaths(projectDir)
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		if s.Name == ref {
			return s, nil
		}
	}
	return nil, fmt.Errorf("script %q not found", ref)
}
