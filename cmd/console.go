package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/cmdbridge/core/commands"
	"github.com/adalundhe/cmdbridge/core/config"
	"github.com/adalundhe/cmdbridge/core/console"
	"github.com/adalundhe/cmdbridge/core/server"
	"github.com/adalundhe/cmdbridge/core/tokenizer"
)

var consoleWatch bool

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run an operator console against an in-process server",
	Long: `Start a server session and read console commands from stdin.

Lines are offered to plugin commands first and fall through to the host's
built-in commands. Unknown commands are reported.

Examples:
  cmdbridge console                    # Interactive console
  echo "plugins" | cmdbridge console   # Run one command
  cmdbridge console --watch            # Reload restricted names on config change`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().BoolVarP(&consoleWatch, "watch", "w", false, "Reload configuration when config files change")
}

func runConsole(cmd *cobra.Command, args []string) error {
	manager, cfg, dirs, err := loadConfig()
	if err != nil {
		return err
	}
	defer manager.Close()

	if err := dirs.EnsureAll(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	out := cmd.OutOrStdout()
	logger := newLogger(cfg, cmd.ErrOrStderr())
	manager.SetLogger(logger)

	session, err := server.New(cfg,
		server.WithLogger(logger),
		server.WithConsoleOutput(out),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	registerBuiltins(session, out)
	if err := session.Initialize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if consoleWatch {
		manager.OnChange(func(updated *config.Config) {
			if err := session.ApplyConfig(updated); err != nil {
				logger.Error("config not applied", "error", err)
			}
		})
		go func() {
			if err := manager.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("config watch stopped", "error", err)
			}
		}()
	}

	c := console.New(hostFallbackSink(session), out,
		console.WithPrefix(session.Dispatcher().Prefix()),
		console.WithLogger(logger),
	)
	err = c.Run(ctx, cmd.InOrStdin())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// hostFallbackSink offers a console line to plugin commands and then to the
// host table, the order a live server processes console input in.
func hostFallbackSink(session *server.Session) commands.Sink {
	prefix := session.Dispatcher().Prefix()
	return func(origin commands.Origin, caller commands.Caller, line string) bool {
		if session.Dispatcher().Dispatch(origin, caller, line) {
			return true
		}
		name, args, ok := tokenizer.Split(strings.TrimPrefix(line, prefix))
		if !ok {
			return false
		}
		// A plugin command already ran; its result stands.
		if _, owned := session.Registry().Lookup(name); owned {
			return false
		}
		if caller == nil {
			caller = session.Dispatcher().Console()
		}
		return session.Host().Execute(caller, name, args)
	}
}

// registerBuiltins installs the stand-in host's own commands.
func registerBuiltins(session *server.Session, out io.Writer) {
	session.Host().Register(&commands.HostCommand{
		Name:        "say",
		Aliases:     []string{"broadcast"},
		Usage:       "/say <message>",
		Description: "Broadcast a message to every player",
		Run: func(caller commands.Caller, label string, args []string) {
			fmt.Fprintf(out, "[Server] %s\n", strings.Join(args, " "))
		},
	})
	session.Host().Register(&commands.HostCommand{
		Name:        "help",
		Usage:       "/help",
		Description: "List available commands",
		Run: func(caller commands.Caller, label string, args []string) {
			for _, name := range session.Host().Names() {
				caller.Reply(session.Dispatcher().Prefix() + name)
			}
		},
	})
}
