package internal

import "fmt"

var (
	// These variables are here only to show current version. They are set in makefile during build process
	BotVersion         = "devel"
	GitRevision        = "devel"
	BotVersionRevision = fmt.Sprintf("%s-%s", BotVersion, GitRevision)
)
