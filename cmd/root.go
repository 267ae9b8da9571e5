// qflags [path], qflags build [path]
package cmd

import (
	"fmt"
	"os"

	"github.com/qobs-build/qflags/internal/builder"
	"github.com/qobs-build/qflags/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagProfile   string
	flagJobs      int
	flagVerbose   bool
	flagGenerator EnumValue = NewEnumValue(builder.GeneratorQobs, map[string]string{
		builder.GeneratorQobs:   "Use the built-in parallel builder (default)",
		builder.GeneratorNinja:  "Generates a build.ninja file",
		builder.GeneratorVS2022: "Generates a Visual Studio 2022 solution and builds it with msbuild",
	})
)

// newBuilder loads the package at the first argument, or "."
func newBuilder(args []string) (*builder.Builder, []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
		args = args[1:]
	}
	b, err := builder.NewBuilderInDirectory(target)
	if err != nil {
		msg.Fatal("%v", err)
	}
	b.SetJobs(flagJobs)
	return b, args
}

func doBuild(cmd *cobra.Command, args []string) {
	b, _ := newBuilder(args)
	if err := b.Build(flagProfile, flagGenerator.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qflags [target path]",
	Short: "Build C/C++ packages with per-source compile flags",
	Long:  `Build C/C++ packages with per-source compile flags`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.SetVerbose(flagVerbose)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [target path]",
	Short: "Build the package",
	Long:  `Build the package. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print buckets, rules and compile commands")
	addBuildFlags(rootCmd)

	// qflags build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Build with the given profile")
	cmd.Flags().VarP(&flagGenerator, "gen", "g", "Generator to build with, one of "+flagGenerator.HelpString())
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "Parallel compile jobs for the built-in builder (0: one per CPU)")
	cmd.RegisterFlagCompletionFunc("gen", flagGenerator.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
