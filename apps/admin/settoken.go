package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core"
)

var configDirFunc = func() string { return filepath.Join(core.Getwd(), "config") } // mockable

// setToken persists the Canvas API token in the environment file the config
// loader reads on startup.
func (cli *commandLine) setToken(token string) error {
	dir := configDirFunc()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	path := filepath.Join(dir, ".env."+strings.ToLower(cli.conf.Env))
	key := strings.ToUpper(cli.conf.Env) + "_CANVASAPITOKEN"
	entry := key + "=" + token

	var lines []string
	if content, err := os.ReadFile(path); err == nil {
		lines = strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading %s", path)
	}

	var replaced bool
	for i, line := range lines {
		if strings.HasPrefix(line, key+"=") {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
	return errors.Wrapf(err, "writing %s", path)
}
