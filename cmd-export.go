package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rpcpool/hashdb/internal/dfxmlio"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmd_Export() *cli.Command {
	return &cli.Command{
		Name:        "export",
		Usage:       "Write every (hash, source, offset) triple as DFXML",
		Description: "Opens dir read-only, walks every triple via the forward-only iterator, and emits a DFXML document.",
		ArgsUsage:   "<hashdb_dir> <dfxml_out>",
		Action: withCommandMetrics("export", func(c *cli.Context) error {
			args, err := requireArgs(c, 2, "export <hashdb_dir> <dfxml_out>")
			if err != nil {
				return err
			}
			dir, outPath := args[0], args[1]

			m, err := hashdb.Open(dir)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer m.Close()

			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("export: create %s: %w", outPath, err)
			}
			defer out.Close()

			wr := dfxmlio.NewWriter(out)
			digestKindName := string(m.Settings().HashDigestType)
			blockSize := m.Settings().HashBlockSize

			count := 0
			it := m.NewIterator()
			for {
				tr, err := it.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("export: iterate: %w", err)
				}
				_, fn, err := m.LookupSource(tr.SourceID)
				if err != nil {
					return fmt.Errorf("export: resolve source %d: %w", tr.SourceID, err)
				}
				rec := dfxmlio.Record{
					Filename:   string(fn),
					FileOffset: tr.Offset * blockSize,
					HashHex:    hex.EncodeToString(tr.Hash),
				}
				if err := wr.Write(rec, digestKindName); err != nil {
					return fmt.Errorf("export: write record: %w", err)
				}
				count++
			}
			if err := wr.Close(); err != nil {
				return fmt.Errorf("export: close: %w", err)
			}
			klog.Infof("export: wrote %d records from %s to %s", count, dir, outPath)
			return nil
		}),
	}
}
