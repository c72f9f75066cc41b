package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/reference"
)

var referenceCmd = &cobra.Command{
	Use:   "reference <seed>",
	Short: "Generate a Finnish payment reference",
	Long: `Generate a national payment reference from the trailing digits of seed
with a 7-3-1 check digit. A seed without trailing digits gets a random base.

Examples:
  finvoice-bridge reference INV/2025/0001   # 00013`,
	Args: cobra.ExactArgs(1),
	RunE: runReference,
}

func init() {
	rootCmd.AddCommand(referenceCmd)
}

func runReference(cmd *cobra.Command, args []string) error {
	ref, err := reference.NewGenerator().Generate(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ref)
	return nil
}
