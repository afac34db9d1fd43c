package commands

// HostFunc is the native callback signature of the host's command table.
type HostFunc func(caller Caller, label string, args []string)

// HostCommand is an entry in the host's native command table.
type HostCommand struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Run         HostFunc
}

// HostTable is the narrow view of the host's command table that the
// registry overrides and restores.
type HostTable interface {
	Get(name string) (*HostCommand, bool)
	Set(name string, cmd *HostCommand)
	Remove(name string)
}
