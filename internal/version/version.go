// Package version contains build version information set via ldflags:
//
//	-X github.com/bissquit/mediahook/internal/version.Version=1.2.0
package version

// Build metadata. Overridden at link time.
var (
	Version   = "0.0.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata served on /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
	}
}

// String formats the metadata for the startup log line.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ", built " + i.BuildDate + ")"
}
