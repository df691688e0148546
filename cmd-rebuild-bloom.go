package main

import (
	"fmt"

	"github.com/rpcpool/hashdb/internal/bloom"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmd_RebuildBloom() *cli.Command {
	var (
		flagBloom1Used   bool
		flagBloom1K      uint
		flagBloom1M      uint
		flagBloom1N      uint64
		flagBloom1FPRate float64
		flagBloom2Used   bool
		flagBloom2K      uint
		flagBloom2M      uint
		flagBloom2N      uint64
		flagBloom2FPRate float64
		flagFPSampleSize uint
	)
	return &cli.Command{
		Name:        "rebuild_bloom",
		Usage:       "Rewrite a database's bloom filter(s) from its hash store",
		Description: "Walks the primary hash store and re-inserts every key into fresh bloom filters, per spec.md §4.2.",
		ArgsUsage:   "<hashdb_dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "bloom1", Value: true, Destination: &flagBloom1Used},
			&cli.UintFlag{Name: "bloom1-k", Value: 3, Destination: &flagBloom1K},
			&cli.UintFlag{Name: "bloom1-m", Value: 28, Usage: "bloom filter 1 size, as log2 of bit count; ignored when bloom1-n > 0", Destination: &flagBloom1M},
			&cli.Uint64Flag{Name: "bloom1-n", Usage: "expected unique hash count for bloom filter 1; when > 0, overrides bloom1-m via spec.md §4.2's sizing helper", Destination: &flagBloom1N},
			&cli.Float64Flag{Name: "bloom1-fp-rate", Value: 0.06, Usage: "target false-positive rate used to size bloom1-n", Destination: &flagBloom1FPRate},
			&cli.BoolFlag{Name: "bloom2", Destination: &flagBloom2Used},
			&cli.UintFlag{Name: "bloom2-k", Value: 3, Destination: &flagBloom2K},
			&cli.UintFlag{Name: "bloom2-m", Value: 32, Usage: "bloom filter 2 size, as log2 of bit count; ignored when bloom2-n > 0", Destination: &flagBloom2M},
			&cli.Uint64Flag{Name: "bloom2-n", Usage: "expected unique hash count for bloom filter 2; when > 0, overrides bloom2-m via spec.md §4.2's sizing helper", Destination: &flagBloom2N},
			&cli.Float64Flag{Name: "bloom2-fp-rate", Value: 0.06, Usage: "target false-positive rate used to size bloom2-n", Destination: &flagBloom2FPRate},
			&cli.UintFlag{Name: "fp-sample-size", Usage: "after rebuilding, sample this many random hashes to estimate the observed false-positive rate (0 skips sampling), per spec.md §8 scenario 5", Destination: &flagFPSampleSize},
		},
		Action: withCommandMetrics("rebuild_bloom", func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "rebuild_bloom <hashdb_dir>")
			if err != nil {
				return err
			}
			dir := args[0]

			m, finish, err := openForWrite(c, dir)
			if err != nil {
				return fmt.Errorf("rebuild_bloom: %w", err)
			}
			defer func() { finish(&err) }()

			var m1, k1, m2, k2 uint32
			if flagBloom1Used {
				k1 = uint32(flagBloom1K)
				if flagBloom1N > 0 {
					m1 = bloom.SizeForCapacity(flagBloom1N, flagBloom1FPRate)
				} else {
					m1 = uint32(flagBloom1M)
				}
			}
			if flagBloom2Used {
				k2 = uint32(flagBloom2K)
				if flagBloom2N > 0 {
					m2 = bloom.SizeForCapacity(flagBloom2N, flagBloom2FPRate)
				} else {
					m2 = uint32(flagBloom2M)
				}
			}
			if err = m.RebuildBloom(m1, k1, m2, k2); err != nil {
				return fmt.Errorf("rebuild_bloom: %w", err)
			}
			klog.Infof("rebuild_bloom: rewrote bloom filters for %s (m1=%d k1=%d m2=%d k2=%d)", dir, m1, k1, m2, k2)

			if flagFPSampleSize > 0 {
				rate, sampleErr := m.SampleBloomFalsePositiveRate(int(flagFPSampleSize))
				if sampleErr != nil {
					err = fmt.Errorf("rebuild_bloom: %w", sampleErr)
					return err
				}
				klog.Infof("rebuild_bloom: sampled %d random hashes, observed false positive rate %.4f%%", flagFPSampleSize, rate*100)
			}
			return nil
		}),
	}
}
