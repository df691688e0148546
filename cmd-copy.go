package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rpcpool/hashdb/internal/dfxmlio"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// isHashdbDir reports whether path looks like an existing hashdb directory
// (carries settings.xml), distinguishing it from a DFXML document, per
// spec.md §6's "src (dfxml or hashdb)".
func isHashdbDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(path, "settings.xml"))
	return err == nil
}

// copyFromHashdb ingests every (hash, source, offset) triple from src into
// dst, including recorded source metadata, by walking src's iterator and
// re-resolving each triple's source through dst's interner.
func copyFromHashdb(srcDir string, dst *hashdb.Manager) error {
	src, err := hashdb.Open(srcDir)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	srcBlockSize := src.Settings().HashBlockSize
	seenSources := make(map[uint64]bool)

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
		if !seenSources[tr.SourceID] {
			seenSources[tr.SourceID] = true
			if entry, ok, err := src.Metadata(tr.SourceID); err != nil {
				return fmt.Errorf("read source metadata %d: %w", tr.SourceID, err)
			} else if ok {
				if err := dst.SetMetadata(dstSourceID, entry); err != nil {
					return fmt.Errorf("set source metadata: %w", err)
				}
			}
		}
		byteOffset := tr.Offset * srcBlockSize
		if err := dst.Insert(tr.Hash, dstSourceID, srcBlockSize, byteOffset); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return nil
}

// copyFromDFXML ingests every fileobject/byte_run/hashdigest record from a
// DFXML document at srcPath, attributing every record to repositoryName
// (DFXML carries no source_id concept of its own).
func copyFromDFXML(srcPath, repositoryName string, dst *hashdb.Manager) error {
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
		if err := dst.Insert(h, sourceID, blockSize, rec.FileOffset); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return nil
}

func newCmd_Copy() *cli.Command {
	var flagRepositoryName string
	return &cli.Command{
		Name:        "copy",
		Usage:       "Ingest hashes from a DFXML document or another hashdb into dst",
		Description: "src may be a DFXML file or an existing hashdb directory; dst must already exist (see create).",
		ArgsUsage:   "<src> <dst_hashdb_dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "repository-name",
				Usage:       "repository_name attributed to every record when src is a DFXML file",
				Destination: &flagRepositoryName,
			},
		},
		Action: withCommandMetrics("copy", func(c *cli.Context) error {
			args, err := requireArgs(c, 2, "copy <src> <dst_hashdb_dir>")
			if err != nil {
				return err
			}
			src, dstDir := args[0], args[1]

			dst, finish, err := openForWrite(c, dstDir)
			if err != nil {
				return fmt.Errorf("copy: %w", err)
			}
			defer func() { finish(&err) }()

			if isHashdbDir(src) {
				klog.Infof("copy: ingesting hashdb %s into %s", src, dstDir)
				err = copyFromHashdb(src, dst)
			} else {
				if flagRepositoryName == "" {
					flagRepositoryName = filepath.Base(src)
				}
				klog.Infof("copy: ingesting DFXML %s into %s as repository %q", src, dstDir, flagRepositoryName)
				err = copyFromDFXML(src, flagRepositoryName, dst)
			}
			if err != nil {
				return fmt.Errorf("copy: %w", err)
			}
			return nil
		}),
	}
}
