package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvOverrideVar names the variable that points at an explicit .env file.
const EnvOverrideVar = "SHIFTTRACK_ENV_FILE"

// EnvLoader loads .env files with a predictable override order:
// SHIFTTRACK_ENV_FILE, then --env, then its basename, then the default path.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load resolves candidate paths in order and loads the first one that exists.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	log.SetOutput(os.Stderr)

	for _, candidate := range l.candidates() {
		if err := godotenv.Overload(candidate.path); err == nil {
			log.Printf("Loaded environment from %s: %s", candidate.label, candidate.path)
			return candidate.path, nil
		} else if candidate.label == EnvOverrideVar {
			log.Printf("Warning: failed to load %s=%s", EnvOverrideVar, candidate.path)
		}
	}

	return "", fmt.Errorf("failed to load env file from %s", l.requested())
}

type envCandidate struct {
	label string
	path  string
}

func (l *EnvLoader) candidates() []envCandidate {
	out := make([]envCandidate, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(label, path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, envCandidate{label: label, path: path})
	}

	add(EnvOverrideVar, os.Getenv(EnvOverrideVar))
	requested := l.requested()
	add("--env", requested)
	if base := filepath.Base(requested); base != "." && base != string(filepath.Separator) {
		add("basename fallback", base)
	}
	add("default", l.defaultPath)
	return out
}

func (l *EnvLoader) requested() string {
	if l.value == nil {
		return l.defaultPath
	}
	if requested := strings.TrimSpace(*l.value); requested != "" {
		return requested
	}
	return l.defaultPath
}
