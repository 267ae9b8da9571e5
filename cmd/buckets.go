// qflags buckets [path]
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/qflags/internal/builder"
	"github.com/qobs-build/qflags/internal/msg"
	"github.com/spf13/cobra"
)

var flagShowArgs bool

func doBuckets(cmd *cobra.Command, args []string) {
	b, _ := newBuilder(args)

	tc, err := builder.FindToolchain()
	if err != nil {
		msg.Warn("%v, assuming a gcc-like toolchain", err)
		tc = builder.NewToolchain("cc", "c++")
	}

	plan, err := b.Plan(flagProfile, tc)
	if err != nil {
		msg.Fatal("%v", err)
	}

	if msg.IsVerbose() {
		for i, rule := range plan.Rules {
			fmt.Printf("%s %d: %s\n", color.HiBlackString("rule"), i, strings.Join(rule.Flags().Values(), " "))
		}
	}

	for i, inv := range plan.Invocations() {
		bucket := plan.Buckets[i]
		fmt.Printf("%s %s, %d files\n",
			color.HiCyanString(bucket.ID),
			color.HiBlackString("(%s)", bucket.Kind),
			len(inv.Files),
		)
		if flags := bucket.Flags(); len(flags) > 0 {
			fmt.Printf("  flags: %s\n", strings.Join(flags, " "))
		}
		for _, f := range inv.Files {
			rel, err := filepath.Rel(b.Basedir(), f)
			if err != nil {
				rel = f
			}
			fmt.Printf("    %s\n", filepath.ToSlash(rel))
		}
		if flagShowArgs {
			fmt.Printf("  objects: %s\n", inv.ObjectDir)
			fmt.Printf("  args: %s\n", strings.Join(inv.CommandArgs(), " "))
		}
	}
}

var bucketsCmd = &cobra.Command{
	Use:   "buckets [target path]",
	Short: "Show how the sources are split by [[target.flags]] rules",
	Long:  `Show every bucket of sources with the extra flags it's compiled with. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuckets,
}

func init() {
	// qflags buckets subcommand
	rootCmd.AddCommand(bucketsCmd)
	bucketsCmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Show buckets for the given profile")
	bucketsCmd.Flags().BoolVarP(&flagShowArgs, "args", "a", false, "Also show the full compiler arguments of each bucket")
}
