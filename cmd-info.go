package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/urfave/cli/v2"
)

func newCmd_Info() *cli.Command {
	return &cli.Command{
		Name:        "info",
		Usage:       "Print a database's settings and change-log counters",
		Description: "Opens dir read-only and prints its settings.xml fields and the change-log counters of this invocation to stdout. Counters are kept in memory per process and are not read back from history.xml, so they print as zero.",
		ArgsUsage:   "<hashdb_dir>",
		Action: withCommandMetrics("info", func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "info <hashdb_dir>")
			if err != nil {
				return err
			}
			dir := args[0]

			m, err := hashdb.Open(dir)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			defer m.Close()

			s := m.Settings()
			fmt.Printf("directory:                %s\n", dir)
			fmt.Printf("settings_version:          %d\n", s.SettingsVersion)
			fmt.Printf("hashdigest_type:           %s\n", s.HashDigestType)
			fmt.Printf("hash_block_size:           %s\n", humanize.Bytes(s.HashBlockSize))
			fmt.Printf("byte_alignment:            %s\n", humanize.Bytes(s.ByteAlignment))
			fmt.Printf("maximum_hash_duplicates:   %d\n", s.MaximumHashDuplicates)
			fmt.Printf("number_of_index_bits:      %d\n", s.NumberOfIndexBits)
			fmt.Printf("bloom_1:                   used=%t k=%d m=%d\n", s.Bloom1.Used, s.Bloom1.KHashFunctions, s.Bloom1.MHashSize)
			fmt.Printf("bloom_2:                   used=%t k=%d m=%d\n", s.Bloom2.Used, s.Bloom2.KHashFunctions, s.Bloom2.MHashSize)
			fmt.Println()

			for _, f := range m.Counters().AsFields() {
				fmt.Printf("%-55s %d\n", f.Name, f.Value)
			}
			return nil
		}),
	}
}
