package ir

// Version constants embedded in generated projects.
const (
	// CompilerVersion is the blockc release.
	CompilerVersion = "0.1.0"

	// Agent is written to the project metadata.
	Agent = "blockc/" + CompilerVersion
)
