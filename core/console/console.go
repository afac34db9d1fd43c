// Package console reads operator commands line by line and feeds them to the
// dispatcher.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adalundhe/cmdbridge/core/commands"
	"github.com/adalundhe/cmdbridge/core/tokenizer"
)

const DefaultPrompt = "> "

type Console struct {
	sink        commands.Sink
	out         io.Writer
	prompt      string
	prefix      string
	interactive *bool
	logger      *slog.Logger
}

type Option func(*Console)

func WithPrompt(prompt string) Option {
	return func(c *Console) { c.prompt = prompt }
}

// WithPrefix sets the command prefix ignored when naming unknown commands.
func WithPrefix(prefix string) Option {
	return func(c *Console) { c.prefix = prefix }
}

// WithInteractive forces the prompt on or off instead of probing the input.
func WithInteractive(interactive bool) Option {
	return func(c *Console) { c.interactive = &interactive }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a console that dispatches through sink and writes its own
// messages to out.
func New(sink commands.Sink, out io.Writer, opts ...Option) *Console {
	if out == nil {
		out = os.Stdout
	}
	c := &Console{
		sink:   sink,
		out:    out,
		prompt: DefaultPrompt,
		prefix: string(commands.DefaultPrefix),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run dispatches every line read from in until EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	interactive := c.isInteractive(in)

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		if interactive {
			fmt.Fprint(c.out, c.prompt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			c.Execute(line)
		}
	}
}

// Execute dispatches a single line and reports unknown commands to the
// operator. It returns whether the line was handled.
func (c *Console) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if c.sink(commands.OriginConsole, nil, line) {
		return true
	}

	name, _, ok := tokenizer.Split(strings.TrimPrefix(line, c.prefix))
	if !ok {
		return false
	}
	c.logger.Debug("unknown console command", "command", name)
	fmt.Fprintf(c.out, "Unknown command: %s\n", name)
	return false
}

func (c *Console) isInteractive(in io.Reader) bool {
	if c.interactive != nil {
		return *c.interactive
	}
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
