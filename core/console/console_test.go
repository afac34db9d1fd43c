package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/cmdbridge/core/commands"
)

type dispatched struct {
	origin commands.Origin
	caller commands.Caller
	line   string
}

func sinkFor(known map[string]bool, seen *[]dispatched) commands.Sink {
	return func(origin commands.Origin, caller commands.Caller, line string) bool {
		*seen = append(*seen, dispatched{origin, caller, line})
		return known[strings.Fields(strings.TrimPrefix(line, "/"))[0]]
	}
}

func TestConsole_RunDispatchesLines(t *testing.T) {
	var out bytes.Buffer
	var seen []dispatched
	c := New(sinkFor(map[string]bool{"status": true}, &seen), &out)

	in := strings.NewReader("status\n\n   \n/bogus arg\n\"say hi\n")
	require.NoError(t, c.Run(context.Background(), in))

	require.Len(t, seen, 3)
	for _, d := range seen {
		assert.Equal(t, commands.OriginConsole, d.origin)
		assert.Nil(t, d.caller)
	}
	assert.Equal(t, "status", seen[0].line)
	assert.Equal(t, "/bogus arg", seen[1].line)

	assert.Equal(t, "Unknown command: bogus\n", out.String())
}

func TestConsole_PromptOnlyWhenInteractive(t *testing.T) {
	var seen []dispatched
	known := map[string]bool{"status": true}

	var quiet bytes.Buffer
	require.NoError(t, New(sinkFor(known, &seen), &quiet).Run(context.Background(), strings.NewReader("status\n")))
	assert.Empty(t, quiet.String())

	var loud bytes.Buffer
	c := New(sinkFor(known, &seen), &loud, WithInteractive(true), WithPrompt("$ "))
	require.NoError(t, c.Run(context.Background(), strings.NewReader("status\n")))
	assert.Equal(t, "$ $ ", loud.String())
}

func TestConsole_CustomPrefix(t *testing.T) {
	var out bytes.Buffer
	var seen []dispatched
	c := New(sinkFor(nil, &seen), &out, WithPrefix("!"))

	assert.False(t, c.Execute("!nope"))
	assert.Equal(t, "Unknown command: nope\n", out.String())
}

func TestConsole_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var seen []dispatched
	c := New(sinkFor(nil, &seen), io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, pr) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("console did not stop")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestConsole_ReadError(t *testing.T) {
	var seen []dispatched
	c := New(sinkFor(nil, &seen), io.Discard)

	err := c.Run(context.Background(), failingReader{})
	assert.EqualError(t, err, "tty gone")
}
