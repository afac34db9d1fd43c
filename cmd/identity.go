package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adalundhe/cmdbridge/core/identity"
)

var identityMinDigits int

var identityCmd = &cobra.Command{
	Use:   "identity <id>...",
	Short: "Check whether ids pass identity validation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIdentity,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.Flags().IntVar(&identityMinDigits, "min-digits", identity.MinDigits, "Minimum digit count of a valid id")
}

func runIdentity(cmd *cobra.Command, args []string) error {
	validate := identity.New(identityMinDigits)

	rejected := 0
	for _, id := range args {
		verdict := "valid"
		if !validate(id) {
			verdict = "invalid"
			rejected++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, verdict)
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d ids rejected", rejected, len(args))
	}
	return nil
}
