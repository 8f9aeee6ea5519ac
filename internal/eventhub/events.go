package eventhub

// Event name constants for the six named change events in spec.md §4.8:
// the Store, LinkGraph and AutoSave mutation paths broadcast these under
// the acting request's namespace so a connected WebSocket subscriber
// (internal/plugin/route/events) observes every change as it happens.
// The MCP session and autosave tools take no namespace and broadcast
// under the default namespace.
const (
	MemoryStored      = "memory_stored"
	MemoryUpdated     = "memory_updated"
	MemoryDeleted     = "memory_deleted"
	LinkCreated       = "link_created"
	LinkDeleted       = "link_deleted"
	CheckpointCreated = "checkpoint_created"
)
