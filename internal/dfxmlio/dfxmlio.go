// Package dfxmlio is minimal glue between DFXML (Digital Forensics XML)
// documents and the (hash, repository_name, filename, file_offset) triples
// the database manager deals in. spec.md §1 explicitly keeps the DFXML
// reader/writer out of the specified core; this package is the external
// collaborator it names, kept deliberately small — streaming token decode
// in, flat element-per-record encode out, no attempt at full DFXML schema
// coverage.
package dfxmlio

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
)

// Record is one block-hash observation read from or written to a DFXML
// document: a fixed-size block at file_offset within (repositoryName,
// filename), with its digest's hex text.
type Record struct {
	RepositoryName string
	Filename       string
	FileOffset     uint64
	HashHex        string
}

// Hash decodes HashHex into raw bytes.
func (r Record) Hash() ([]byte, error) {
	b, err := hex.DecodeString(r.HashHex)
	if err != nil {
		return nil, fmt.Errorf("dfxmlio: decode hashdigest %q: %w", r.HashHex, err)
	}
	return b, nil
}

type fileobjectXML struct {
	XMLName  xml.Name     `xml:"fileobject"`
	Filename string       `xml:"filename"`
	ByteRuns []byteRunXML `xml:"byte_runs>byte_run"`
}

type byteRunXML struct {
	FileOffset uint64          `xml:"file_offset,attr"`
	Hashes     []hashdigestXML `xml:"hashdigest"`
}

type hashdigestXML struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// Reader streams fileobject/byte_run/hashdigest triples out of a DFXML
// document without materializing the whole tree, matching the scale DFXML
// exports from bulk media images reach.
type Reader struct {
	dec            *xml.Decoder
	repositoryName string
	pending        []Record
}

// NewReader wraps r. repositoryName is the source collection name to
// attach to every record read (DFXML's own <source> element names the
// image, but the database's repository_name is supplied by the caller —
// the CLI's `copy` command uses its -repository-name flag, or the DFXML
// file's base name when that flag is empty).
func NewReader(r io.Reader, repositoryName string) *Reader {
	return &Reader{dec: xml.NewDecoder(r), repositoryName: repositoryName}
}

// Next returns the next Record, or io.EOF once the document is exhausted.
func (rd *Reader) Next() (Record, error) {
	for len(rd.pending) == 0 {
		tok, err := rd.dec.Token()
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, fmt.Errorf("dfxmlio: read token: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "fileobject" {
			continue
		}
		var fo fileobjectXML
		if err := rd.dec.DecodeElement(&fo, &se); err != nil {
			return Record{}, fmt.Errorf("dfxmlio: decode fileobject: %w", err)
		}
		for _, br := range fo.ByteRuns {
			for _, hd := range br.Hashes {
				rd.pending = append(rd.pending, Record{
					RepositoryName: rd.repositoryName,
					Filename:       fo.Filename,
					FileOffset:     br.FileOffset,
					HashHex:        hd.Value,
				})
			}
		}
	}
	rec := rd.pending[0]
	rd.pending = rd.pending[1:]
	return rec, nil
}

// Writer emits one <fileobject> per call to Write, wrapped in a <dfxml>
// root, the shape `export` produces.
type Writer struct {
	enc    *xml.Encoder
	opened bool
}

// NewWriter wraps w. Close must be called to emit the closing root tag.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: xml.NewEncoder(w)}
}

func (wr *Writer) ensureOpen() error {
	if wr.opened {
		return nil
	}
	if err := wr.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "dfxml"}}); err != nil {
		return err
	}
	wr.opened = true
	return nil
}

// hashdigestType is the DFXML hashdigest "type" attribute for a given
// digest kind name, matching the vocabulary the original tool emits.
func hashdigestType(digestKindName string) string {
	switch digestKindName {
	case "MD5":
		return "md5"
	case "SHA1":
		return "sha1"
	case "SHA256":
		return "sha256"
	default:
		return "raw"
	}
}

// Write appends one fileobject element for rec, encoding its hash as
// hashdigestType(digestKindName).
func (wr *Writer) Write(rec Record, digestKindName string) error {
	if err := wr.ensureOpen(); err != nil {
		return err
	}
	fo := fileobjectXML{
		Filename: rec.Filename,
		ByteRuns: []byteRunXML{{
			FileOffset: rec.FileOffset,
			Hashes: []hashdigestXML{{
				Type:  hashdigestType(digestKindName),
				Value: rec.HashHex,
			}},
		}},
	}
	return wr.enc.Encode(fo)
}

// Close emits the closing </dfxml> tag and flushes the underlying encoder.
func (wr *Writer) Close() error {
	if err := wr.ensureOpen(); err != nil {
		return err
	}
	if err := wr.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "dfxml"}}); err != nil {
		return err
	}
	return wr.enc.Flush()
}
