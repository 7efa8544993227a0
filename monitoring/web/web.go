// Package web embeds the dashboard served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/dosflow/dosflow/internal/logging"
)

//go:embed dist
var dist embed.FS

// DevModeEnv makes the monitor serve the pages from the source tree, so that
// edits show up without rebuilding the binary.
const DevModeEnv = "DOSFLOW_MONITOR_DEV"

// Assets returns the dashboard files.
func Assets() http.FileSystem {
	if devMode() {
		return http.Dir(sourceDir())
	}

	pages, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(pages)
}

func sourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the web sources")
	}

	dir := filepath.Join(filepath.Dir(file), "dist")

	logging.Component("monitoring").Info().
		Str("path", dir).
		Msg("serving dashboard from the source tree")

	return dir
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))

	return err == nil && on
}
