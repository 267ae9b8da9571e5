// qflags run [path]
package cmd

import (
	"github.com/qobs-build/qflags/internal/msg"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	b, args := newBuilder(args) // other arguments will be passed to program
	if err := b.BuildAndRun(args, flagProfile, flagGenerator.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [target path] [args...]",
	Short: "Build and run the package",
	Long:  `Build and run the package. If no target path is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// qflags run subcommand
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
