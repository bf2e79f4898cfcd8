// Package mailbox defines the shared-storage naming convention that pairs
// a command blob to its result blob by identifier. Both sides of the bridge
// depend on these names matching exactly, so all name construction and
// parsing lives here.
package mailbox

import "strings"

const (
	// CommandPrefix is the list filter for pending commands.
	CommandPrefix = "command_"
	// ResultPrefix is the list filter for unconsumed results.
	ResultPrefix = "result_"

	blobSuffix = ".json"

	// HeartbeatBlobName is the fixed name of the processor liveness marker.
	HeartbeatBlobName = "heartbeat.json"

	// WorkspacePrefix is the name prefix under which synced workspace
	// files are stored, alongside the mailbox blobs.
	WorkspacePrefix = "workspace/"

	// ManifestBlobName holds the remote workspace entry set. Rewritten
	// wholesale on every sync pass, never updated incrementally.
	ManifestBlobName = "workspace.manifest.json"
)

// CommandBlobName returns the blob name carrying the given command id.
func CommandBlobName(id string) string {
	return CommandPrefix + id + blobSuffix
}

// ResultBlobName returns the blob name of the result paired with id.
func ResultBlobName(id string) string {
	return ResultPrefix + id + blobSuffix
}

// ParseCommandID extracts the command id from a blob name. Listing is
// prefix-based and the container is shared, so anything that is not
// exactly command_<id>.json with a non-empty flat id yields ok=false.
func ParseCommandID(name string) (id string, ok bool) {
	return parseID(name, CommandPrefix)
}

// ParseResultID extracts the command id from a result blob name.
func ParseResultID(name string) (id string, ok bool) {
	return parseID(name, ResultPrefix)
}

func parseID(name, prefix string) (string, bool) {
	rest, found := strings.CutPrefix(name, prefix)
	if !found {
		return "", false
	}
	id, found := strings.CutSuffix(rest, blobSuffix)
	if !found || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
