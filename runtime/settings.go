package runtime

// Operation distinguishes the direction of an asset handler call.
type Operation string

const (
	OpInput  Operation = "input"
	OpOutput Operation = "output"
)

// Settings is the collaborator contract consumed by the input and output
// steps. A binding supplies the concrete asset I/O for a deployment: local
// files, HTTP, a database, or anything else.
type Settings interface {
	// InputHandler loads one asset identified by its group (a directory or
	// connection root) and file name, returning the in-memory payload.
	InputHandler(group, file string) (any, error)

	// OutputHandler writes one asset in one format. opts passes through the
	// manifest's output options verbatim.
	OutputHandler(group, key, format string, payload any, opts map[string]any) error
}

// Optional capabilities are discovered by interface assertion on the settings
// binding, the same way the task container detects plugin interfaces.

// AssetAnalyzer post-processes an asset after load or emit and returns a
// custom log message. An empty return falls back to the default message.
type AssetAnalyzer interface {
	AnalyzeAsset(group, name, format string, payload any, duration string, op Operation) string
}

// ReleaseSpecifier exposes the label of the data release being processed.
type ReleaseSpecifier interface {
	ReleaseSpec() string
}

// AssetLocator overrides the existence check that gates every input asset.
// Bindings that load assets from somewhere other than the local file system
// implement this; the default is an os.Stat on group/file.
type AssetLocator interface {
	AssetExists(group, file string) bool
}
