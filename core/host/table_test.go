package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/cmdbridge/core/commands"
)

type owner struct{ name string }

func (o *owner) Name() string { return o.name }
func (o *owner) IsCore() bool { return false }

func TestTable_RegisterWithAliases(t *testing.T) {
	table := NewTable()

	var notified [][]string
	table.OnRegister(func(names []string) {
		notified = append(notified, names)
	})

	cmd := &commands.HostCommand{Name: "Teleport", Aliases: []string{"tp", " "}}
	table.Register(cmd)

	got, ok := table.Get("TP")
	require.True(t, ok)
	assert.Same(t, cmd, got)
	assert.Equal(t, []string{"teleport", "tp"}, table.Names())
	assert.Equal(t, [][]string{{"teleport", "tp"}}, notified)

	table.Register(nil)
	table.Register(&commands.HostCommand{})
	assert.Len(t, notified, 1)
}

func TestTable_SetRemove(t *testing.T) {
	table := NewTable()
	cmd := &commands.HostCommand{Name: "kick"}

	table.Set("kick", cmd)
	_, ok := table.Get("kick")
	assert.True(t, ok)

	table.Set("kick", nil)
	_, ok = table.Get("kick")
	assert.False(t, ok)

	table.Set("kick", cmd)
	table.Remove("KICK")
	assert.Empty(t, table.Names())
}

func TestTable_Execute(t *testing.T) {
	table := NewTable()

	var label string
	var args []string
	table.Register(&commands.HostCommand{
		Name:    "say",
		Aliases: []string{"s"},
		Run: func(caller commands.Caller, l string, a []string) {
			label, args = l, a
		},
	})
	table.Set("inert", &commands.HostCommand{Name: "inert"})

	assert.True(t, table.Execute(nil, "S", []string{"hi"}))
	assert.Equal(t, "s", label)
	assert.Equal(t, []string{"hi"}, args)

	assert.False(t, table.Execute(nil, "inert", nil))
	assert.False(t, table.Execute(nil, "missing", nil))
}

func TestTable_RegistryOverrideAndEngineReRegister(t *testing.T) {
	table := NewTable()
	builtin := &commands.HostCommand{Name: "kick", Run: func(commands.Caller, string, []string) {}}
	table.Register(builtin)

	reg := commands.NewRegistry(table)
	table.OnRegister(func(names []string) {
		reg.HostCommandRegistered(names...)
	})

	var calls int
	p := &owner{name: "Moderation"}
	require.NoError(t, reg.Register("kick", p, func(commands.Caller, string, []string) bool {
		calls++
		return true
	}))

	assert.True(t, table.Execute(nil, "kick", nil))
	assert.Equal(t, 1, calls)

	fresh := &commands.HostCommand{Name: "kick", Run: func(commands.Caller, string, []string) {}}
	table.Register(fresh)

	current, _ := table.Get("kick")
	assert.True(t, reg.IsShim(current))
	assert.True(t, table.Execute(nil, "kick", nil))
	assert.Equal(t, 2, calls)

	reg.Unregister("kick", p)
	restored, _ := table.Get("kick")
	assert.Same(t, fresh, restored)
}
