package version

// Build metadata. GitCommit and BuildTime are injected via -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildTime = ""
)
