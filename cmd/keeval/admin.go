package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/keeval/keeval"
	"github.com/keeval/keeval/internal/adapters/fs"
)

func newConsolidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Rewrite the journal to one record per live key",
		Long: `Rewrite the journal to one set record per live key, in the order each key
last became live. Do not run this against a journal a server is writing to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.resolve(cmd); err != nil {
				return err
			}
			logger, closer, err := commandLogger(c.cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			cfg := storeConfig(c.cfg)
			cfg.Replay = false
			store, err := keeval.Open(cfg, keeval.WithLogger(logger))
			if err != nil {
				return err
			}
			return store.Consolidate()
		},
	}
}

func newDumpCmd(c *cli) *cobra.Command {
	var prettyPrint bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print journal records as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.resolve(cmd); err != nil {
				return err
			}

			journal := fs.NewFileJournal(c.cfg.DataFile, fs.JournalOptions{StrictCommands: c.cfg.StrictCommands})
			records, err := journal.ReadAll()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, rec := range records {
				b, err := rec.MarshalJSON()
				if err != nil {
					return fmt.Errorf("encode %q: %w", rec.Key, err)
				}
				if prettyPrint {
					b = pretty.Pretty(b)
				} else {
					b = append(b, '\n')
				}
				if _, err := out.Write(b); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prettyPrint, "pretty", false, "indent each record")
	return cmd
}
