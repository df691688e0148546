package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rpcpool/hashdb/internal/dfxmlio"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// removeFromHashdb erases every triple found in srcDir from dst, resolving
// each triple's source through dst's own interner via InternSource (a
// source present in src but never seen by dst is added to dst's interner,
// and the erase is then counted as a no-such-hash or no-such-element
// rejection per spec.md §4.7's erase protocol).
func removeFromHashdb(srcDir string, dst *hashdb.Manager) error {
	src, err := hashdb.Open(srcDir)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	srcBlockSize := src.Settings().HashBlockSize
	it := src.NewIterator()
	for {
		tr, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("iterate source database: %w", err)
		}
		rn, fn, err := src.LookupSource(tr.SourceID)
		if err != nil {
			return fmt.Errorf("resolve source %d: %w", tr.SourceID, err)
		}
		dstSourceID, _, err := dst.InternSource(rn, fn)
		if err != nil {
			return fmt.Errorf("intern source (%s,%s): %w", rn, fn, err)
		}
		byteOffset := tr.Offset * srcBlockSize
		if err := dst.Erase(tr.Hash, dstSourceID, srcBlockSize, byteOffset); err != nil {
			return fmt.Errorf("erase: %w", err)
		}
	}
	return nil
}

func removeFromDFXML(srcPath, repositoryName string, dst *hashdb.Manager) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open DFXML: %w", err)
	}
	defer f.Close()

	rd := dfxmlio.NewReader(f, repositoryName)
	blockSize := dst.Settings().HashBlockSize
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read DFXML record: %w", err)
		}
		h, err := rec.Hash()
		if err != nil {
			return err
		}
		sourceID, _, err := dst.InternSource([]byte(rec.RepositoryName), []byte(rec.Filename))
		if err != nil {
			return fmt.Errorf("intern source: %w", err)
		}
		if err := dst.Erase(h, sourceID, blockSize, rec.FileOffset); err != nil {
			return fmt.Errorf("erase: %w", err)
		}
	}
	return nil
}

func newCmd_Remove() *cli.Command {
	var flagRepositoryName string
	return &cli.Command{
		Name:        "remove",
		Usage:       "Remove hashes present in src from dst",
		Description: "src may be a DFXML file or an existing hashdb directory; each matching triple is erased from dst.",
		ArgsUsage:   "<src> <dst_hashdb_dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "repository-name",
				Usage:       "repository_name attributed to every record when src is a DFXML file",
				Destination: &flagRepositoryName,
			},
		},
		Action: withCommandMetrics("remove", func(c *cli.Context) error {
			args, err := requireArgs(c, 2, "remove <src> <dst_hashdb_dir>")
			if err != nil {
				return err
			}
			src, dstDir := args[0], args[1]

			dst, finish, err := openForWrite(c, dstDir)
			if err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			defer func() { finish(&err) }()

			if isHashdbDir(src) {
				klog.Infof("remove: erasing hashes found in %s from %s", src, dstDir)
				err = removeFromHashdb(src, dst)
			} else {
				klog.Infof("remove: erasing hashes found in DFXML %s from %s", src, dstDir)
				err = removeFromDFXML(src, flagRepositoryName, dst)
			}
			if err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			return nil
		}),
	}
}
