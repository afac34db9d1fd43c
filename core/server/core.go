package server

import (
	"fmt"
	"strings"

	"github.com/adalundhe/cmdbridge/core/commands"
	"github.com/adalundhe/cmdbridge/core/plugins"
)

const CorePluginName = "cmdbridge"

// loadCorePlugin installs the server's own commands. They are owned by a core
// plugin so no other registrant can replace them.
func (s *Session) loadCorePlugin() error {
	s.core = plugins.New(CorePluginName, plugins.AsCore(), plugins.WithAuthor("cmdbridge"))
	if err := s.plugins.Load(s.core); err != nil {
		return err
	}

	coreCommands := map[string]commands.Handler{
		"plugins":  s.listPlugins,
		"commands": s.listCommands,
	}
	for name, handler := range coreCommands {
		if err := s.registry.Register(name, s.core, handler); err != nil {
			return fmt.Errorf("register core command %s: %w", name, err)
		}
	}
	return nil
}

func (s *Session) listPlugins(caller commands.Caller, name string, args []string) bool {
	loaded := s.plugins.All()
	caller.Reply(fmt.Sprintf("Listing %d plugins:", len(loaded)))
	for _, p := range loaded {
		stats := p.Stats()
		line := fmt.Sprintf("  %s", p.Name())
		if p.Version() != "" {
			line += " " + p.Version()
		}
		if p.Author() != "" {
			line += " by " + p.Author()
		}
		line += fmt.Sprintf(" (%d calls, %s)", stats.Calls, stats.Total)
		caller.Reply(line)
	}
	return true
}

func (s *Session) listCommands(caller commands.Caller, name string, args []string) bool {
	filter := ""
	if len(args) > 0 {
		filter = strings.ToLower(args[0])
	}
	for _, record := range s.registry.Records() {
		if filter != "" && !strings.HasPrefix(record.Name, filter) {
			continue
		}
		owner := "unknown"
		if record.Owner != nil {
			owner = record.Owner.Name()
		}
		line := fmt.Sprintf("  %s%s (%s)", s.dispatcher.Prefix(), record.Name, owner)
		if record.OverridesBuiltin() {
			line += " overrides built-in"
		}
		caller.Reply(line)
	}
	return true
}
