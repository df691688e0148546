package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/rpcpool/hashdb/internal/settings"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmd_Merge() *cli.Command {
	return &cli.Command{
		Name:        "merge",
		Usage:       "Union two hash databases into a new third database",
		Description: "Creates out fresh with in1's settings, then ingests every triple from in1 and in2.",
		ArgsUsage:   "<in1_hashdb_dir> <in2_hashdb_dir> <out_hashdb_dir>",
		Action: withCommandMetrics("merge", func(c *cli.Context) error {
			start := time.Now()
			args, err := requireArgs(c, 3, "merge <in1> <in2> <out>")
			if err != nil {
				return err
			}
			in1, in2, outDir := args[0], args[1], args[2]

			in1Settings, err := settings.Load(in1)
			if err != nil {
				return fmt.Errorf("merge: read %s settings: %w", in1, err)
			}

			out, err := hashdb.Create(outDir, in1Settings)
			if err != nil {
				return fmt.Errorf("merge: create %s: %w", outDir, err)
			}
			defer out.Close()

			klog.Infof("merge: ingesting %s into %s", in1, outDir)
			if err := copyFromHashdb(in1, out); err != nil {
				return fmt.Errorf("merge: ingest %s: %w", in1, err)
			}
			klog.Infof("merge: ingesting %s into %s", in2, outDir)
			if err := copyFromHashdb(in2, out); err != nil {
				return fmt.Errorf("merge: ingest %s: %w", in2, err)
			}
			snap := out.Counters()
			entry := settings.HistoryEntry{
				CommandLine:     strings.Join(os.Args, " "),
				DurationSeconds: time.Since(start).Seconds(),
			}
			for _, f := range snap.AsFields() {
				entry.Counters = append(entry.Counters, settings.CounterField{Name: f.Name, Value: f.Value})
			}
			if err := settings.AppendHistory(outDir, entry); err != nil {
				klog.Warningf("append history: %v", err)
			}
			printCounterSummary(snap)
			return nil
		}),
	}
}
