package ledgrator

var (
	Version   = "dev"
	GitCommit = "unknown"
)
