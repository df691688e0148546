package main

import (
	"fmt"

	"github.com/rpcpool/hashdb/internal/bloom"
	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/rpcpool/hashdb/internal/settings"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmd_Create() *cli.Command {
	var (
		flagHashDigestType string
		flagHashBlockSize  uint64
		flagByteAlignment  uint64
		flagMaxDuplicates  uint
		flagIndexBits      uint
		flagBloom1Used     bool
		flagBloom1K        uint
		flagBloom1M        uint
		flagBloom1N        uint64
		flagBloom1FPRate   float64
		flagBloom2Used     bool
		flagBloom2K        uint
		flagBloom2M        uint
		flagBloom2N        uint64
		flagBloom2FPRate   float64
	)
	return &cli.Command{
		Name:        "create",
		Usage:       "Create a new, empty hash database",
		Description: "Materializes a hashdb directory with settings.xml and zero-length store files.",
		ArgsUsage:   "<hashdb_dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "hashdigest-type",
				Usage:       "MD5, SHA1, SHA256, STRAIGHT16, or STRAIGHT64",
				Value:       string(digest.MD5),
				Destination: &flagHashDigestType,
			},
			&cli.Uint64Flag{
				Name:        "hash-block-size",
				Usage:       "size in bytes of the aligned blocks hashes are computed over",
				Value:       4096,
				Destination: &flagHashBlockSize,
			},
			&cli.Uint64Flag{
				Name:        "byte-alignment",
				Usage:       "informational alignment metadata (spec.md §9 open question)",
				Value:       4096,
				Destination: &flagByteAlignment,
			},
			&cli.UintFlag{
				Name:        "max-duplicates",
				Usage:       "maximum references tracked per hash; 0 means unlimited",
				Destination: &flagMaxDuplicates,
			},
			&cli.UintFlag{
				Name:        "index-bits",
				Usage:       "k: bits of the packed word reserved for source_id, in [32,40]",
				Value:       34,
				Destination: &flagIndexBits,
			},
			&cli.BoolFlag{
				Name:        "bloom1",
				Usage:       "enable the first bloom filter",
				Value:       true,
				Destination: &flagBloom1Used,
			},
			&cli.UintFlag{
				Name:        "bloom1-k",
				Usage:       "bloom filter 1 hash function count",
				Value:       3,
				Destination: &flagBloom1K,
			},
			&cli.UintFlag{
				Name:        "bloom1-m",
				Usage:       "bloom filter 1 size, as log2 of bit count; ignored when bloom1-n > 0",
				Value:       28,
				Destination: &flagBloom1M,
			},
			&cli.Uint64Flag{
				Name:        "bloom1-n",
				Usage:       "expected unique hash count for bloom filter 1; when > 0, overrides bloom1-m via spec.md §4.2's sizing helper",
				Destination: &flagBloom1N,
			},
			&cli.Float64Flag{
				Name:        "bloom1-fp-rate",
				Usage:       "target false-positive rate used to size bloom1-n",
				Value:       0.06,
				Destination: &flagBloom1FPRate,
			},
			&cli.BoolFlag{
				Name:        "bloom2",
				Usage:       "enable the second bloom filter",
				Destination: &flagBloom2Used,
			},
			&cli.UintFlag{
				Name:        "bloom2-k",
				Usage:       "bloom filter 2 hash function count",
				Value:       3,
				Destination: &flagBloom2K,
			},
			&cli.UintFlag{
				Name:        "bloom2-m",
				Usage:       "bloom filter 2 size, as log2 of bit count; ignored when bloom2-n > 0",
				Value:       32,
				Destination: &flagBloom2M,
			},
			&cli.Uint64Flag{
				Name:        "bloom2-n",
				Usage:       "expected unique hash count for bloom filter 2; when > 0, overrides bloom2-m via spec.md §4.2's sizing helper",
				Destination: &flagBloom2N,
			},
			&cli.Float64Flag{
				Name:        "bloom2-fp-rate",
				Usage:       "target false-positive rate used to size bloom2-n",
				Value:       0.06,
				Destination: &flagBloom2FPRate,
			},
		},
		Action: withCommandMetrics("create", func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "create <hashdb_dir>")
			if err != nil {
				return err
			}
			dir := args[0]

			s := settings.Default()
			s.HashDigestType = digest.Kind(flagHashDigestType)
			s.HashBlockSize = flagHashBlockSize
			s.ByteAlignment = flagByteAlignment
			s.MaximumHashDuplicates = uint32(flagMaxDuplicates)
			s.NumberOfIndexBits = uint8(flagIndexBits)
			bloom1M := uint32(flagBloom1M)
			if flagBloom1N > 0 {
				bloom1M = bloom.SizeForCapacity(flagBloom1N, flagBloom1FPRate)
			}
			bloom2M := uint32(flagBloom2M)
			if flagBloom2N > 0 {
				bloom2M = bloom.SizeForCapacity(flagBloom2N, flagBloom2FPRate)
			}
			s.Bloom1 = settings.BloomConfig{Used: flagBloom1Used, KHashFunctions: uint32(flagBloom1K), MHashSize: bloom1M}
			s.Bloom2 = settings.BloomConfig{Used: flagBloom2Used, KHashFunctions: uint32(flagBloom2K), MHashSize: bloom2M}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("create: %w", err)
			}

			m, err := hashdb.Create(dir, s)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}
			defer m.Close()
			klog.Infof("create: new database at %s (%s, block size %d, k=%d)", dir, s.HashDigestType, s.HashBlockSize, s.NumberOfIndexBits)
			return nil
		}),
	}
}
