package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/cmdbridge/core/tokenizer"
)

var tokenizeJSON bool

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize <line>",
	Short: "Show how a command line is split into tokens",
	Long: `Split a command line the way the dispatcher does. Arguments are joined
with spaces, so quote the line to preserve its exact spacing.

Examples:
  cmdbridge tokenize 'give "sword of fire" 1'
  cmdbridge tokenize --json 'say "hello world"'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTokenize,
}

func init() {
	rootCmd.AddCommand(tokenizeCmd)
	tokenizeCmd.Flags().BoolVar(&tokenizeJSON, "json", false, "Output as JSON")
}

func runTokenize(cmd *cobra.Command, args []string) error {
	tokens := tokenizer.Tokenize(strings.Join(args, " "))
	out := cmd.OutOrStdout()

	if tokenizeJSON {
		if tokens == nil {
			tokens = []string{}
		}
		enc := json.NewEncoder(out)
		return enc.Encode(tokens)
	}

	for i, token := range tokens {
		fmt.Fprintf(out, "%d\t%s\n", i, token)
	}
	return nil
}
