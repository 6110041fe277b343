// Package version exposes build metadata stamped in via ldflags, e.g.
//
//	go build -ldflags "-X github.com/cellarlog/cellarlog/internal/version.Version=1.0.0"
//
// Unstamped builds report 0.0.0-dev.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version of the build
	Version = "0.0.0-dev"

	// Commit is the git commit the binary was built from
	Commit = "unknown"

	// Date is the build timestamp in RFC3339
	Date = "unknown"

	// Dirty is "true" when the tree had uncommitted changes; ldflags
	// can only stamp strings, so Get converts it
	Dirty = "false"
)

// Info is the resolved build metadata, shaped for the version command
// and the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get resolves the stamped variables together with runtime details.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Dirty:     Dirty == "true",
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the full version line, e.g.
// "1.0.0 (abc1234) built 2024-01-15T10:00:00Z".
func (i Info) String() string {
	dirty := ""
	if i.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s) built %s", i.Version, i.Commit, dirty, i.Date)
}

// Short renders just the version, with a -dirty suffix when relevant.
func (i Info) Short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}
