package version

// These are filled in at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)
