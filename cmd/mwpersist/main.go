// Package main provides the entry point for the mwpersist CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/cmd/mwpersist/commands"
	"github.com/Sumatoshi-tech/mwpersist/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "mwpersist",
		Short: "Token-level authorship and survival statistics over MediaWiki revision history",
		Long: `mwpersist turns a stream of MediaWiki revisions into token-level
authorship and survival statistics: diffing each revision against its
predecessor, tracking token identity across reverts, and aggregating
per-token persistence into per-revision stats.

Commands:
  dump2json           Map raw (page, revision) pairs to the Revision record shape
  dump2diffs          Map raw pairs straight through to computed diffs
  json2diffs          Compute diffs over a page-partitioned Revision stream
  mend_diffs          Repair broken diff chains from independently re-diffed blocks
  diffs2persistence   Apply the sliding-window token-persistence algorithm
  persistence2stats   Aggregate per-token stats into per-revision summaries
  json2tsv            Extract dotted field paths from each document as TSV
  validate            Validate each document against a JSON Schema
  truncate_text       Cap each document's text field
  normalize           Upgrade documents from the deprecated page.redirect shape
  wikihadoop2json     Collapse Wikihadoop page-pairs to their second revision`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		commands.NewDump2JSONCommand(),
		commands.NewDump2DiffsCommand(),
		commands.NewJSON2DiffsCommand(),
		commands.NewMendDiffsCommand(),
		commands.NewDiffs2PersistenceCommand(),
		commands.NewPersistence2StatsCommand(),
		commands.NewJSON2TSVCommand(),
		commands.NewValidateCommand(),
		commands.NewTruncateTextCommand(),
		commands.NewNormalizeCommand(),
		commands.NewWikiHadoop2JSONCommand(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "mwpersist %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
