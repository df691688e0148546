// Package settings implements the on-disk settings.xml, history.xml, and
// log.xml documents from spec.md §4.8 and §6. Uses stdlib encoding/xml —
// see DESIGN.md for why no example repo's library fits here (none of the
// pack reads or writes XML at all).
package settings

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/rpcpool/hashdb/internal/digest"
)

// BloomConfig is the {used, k_hash_functions, M_hash_size} triple for one
// of the two configurable bloom filters.
type BloomConfig struct {
	Used           bool   `xml:"used"`
	KHashFunctions uint32 `xml:"k_hash_functions"`
	MHashSize      uint32 `xml:"m_hash_size"`
}

// Settings is the flat, element-per-field settings document. Field order
// matches spec.md §6's element list.
type Settings struct {
	XMLName             xml.Name    `xml:"settings"`
	SettingsVersion      int         `xml:"settings_version"`
	HashDigestType       digest.Kind `xml:"hashdigest_type"`
	HashBlockSize        uint64      `xml:"hash_block_size"`
	ByteAlignment        uint64      `xml:"byte_alignment"`
	MaximumHashDuplicates uint32      `xml:"maximum_hash_duplicates"`
	NumberOfIndexBits    uint8       `xml:"number_of_index_bits"`
	Bloom1               BloomConfig `xml:"bloom_1"`
	Bloom2               BloomConfig `xml:"bloom_2"`
}

// CurrentSettingsVersion is written into every newly created database.
const CurrentSettingsVersion = 3

// Default returns a Settings populated with conservative defaults,
// matching `create`'s own defaults when the caller passes no overrides.
func Default() Settings {
	return Settings{
		SettingsVersion:       CurrentSettingsVersion,
		HashDigestType:        digest.MD5,
		HashBlockSize:         4096,
		ByteAlignment:         4096,
		MaximumHashDuplicates: 0, // unlimited
		NumberOfIndexBits:     34,
		Bloom1:                BloomConfig{Used: true, KHashFunctions: 3, MHashSize: 28},
		Bloom2:                BloomConfig{Used: false},
	}
}

// Validate checks the invariants settings.md §3 invariant 6 and §6's
// field ranges require before a database can be opened.
func (s Settings) Validate() error {
	if !s.HashDigestType.Valid() {
		return fmt.Errorf("settings: invalid hashdigest_type %q", s.HashDigestType)
	}
	if s.NumberOfIndexBits < 32 || s.NumberOfIndexBits > 40 {
		return fmt.Errorf("settings: number_of_index_bits %d out of range [32,40]", s.NumberOfIndexBits)
	}
	if s.HashBlockSize == 0 {
		return fmt.Errorf("settings: hash_block_size must be > 0")
	}
	return nil
}

const settingsFileName = "settings.xml"

// Load reads settings.xml from dir.
func Load(dir string) (Settings, error) {
	b, err := os.ReadFile(settingsPath(dir))
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read: %w", err)
	}
	var s Settings
	if err := xml.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes settings.xml to dir, creating dir if needed.
func Save(dir string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	out = append([]byte(xml.Header), out...)
	return os.WriteFile(settingsPath(dir), out, 0o644)
}

func settingsPath(dir string) string {
	return dir + string(os.PathSeparator) + settingsFileName
}
