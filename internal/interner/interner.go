// Package interner implements the bidirectional source-name interner:
// repository_name<->rn_id, filename<->fn_id, and (rn_id,fn_id)<->source_id.
// Both the forward (string->id) and the reverse (id->string) direction
// are internal/kv ordered stores, pairing a forward index with a reverse
// lookup table the way the teacher pairs store/index with
// store/primary/gsfaprimary.
package interner

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/rpcpool/hashdb/internal/kv"
)

// Interner owns the three bidirectional maps. It is safe for concurrent
// use; all mutation goes through GetOrInsert under a single mutex,
// matching the database manager's single-writer model (spec.md §5).
type Interner struct {
	mu sync.Mutex

	rnFwd *kv.Store // repository_name -> rn_id (8 bytes LE)
	rnRev *kv.Store // rn_id (8 bytes LE) -> repository_name
	fnFwd *kv.Store // filename -> fn_id
	fnRev *kv.Store // fn_id -> filename
	srcFwd *kv.Store // (rn_id||fn_id, 16 bytes) -> source_id
	srcRev *kv.Store // source_id (8 bytes) -> rn_id||fn_id

	nextRNID     uint64
	nextFNID     uint64
	nextSourceID uint64
}

// Open opens or creates the interner's backing stores under dir.
func Open(dir string) (*Interner, error) {
	in := &Interner{}
	var err error
	if in.rnFwd, err = kv.Open(dir, "source_repository_name_store.fwd", 1); err != nil {
		return nil, err
	}
	if in.rnRev, err = kv.Open(dir, "source_repository_name_store.rev", 1); err != nil {
		return nil, err
	}
	if in.fnFwd, err = kv.Open(dir, "source_filename_store.fwd", 1); err != nil {
		return nil, err
	}
	if in.fnRev, err = kv.Open(dir, "source_filename_store.rev", 1); err != nil {
		return nil, err
	}
	if in.srcFwd, err = kv.Open(dir, "source_store.fwd", 1); err != nil {
		return nil, err
	}
	if in.srcRev, err = kv.Open(dir, "source_store.rev", 1); err != nil {
		return nil, err
	}
	// Ids are never garbage collected (spec: a removed hash's source id
	// stays interned), so the next free id is always count+1.
	in.nextRNID = uint64(in.rnRev.Len()) + 1
	in.nextFNID = uint64(in.fnRev.Len()) + 1
	in.nextSourceID = uint64(in.srcRev.Len()) + 1
	return in, nil
}

func (in *Interner) Close() error {
	for _, s := range []*kv.Store{in.rnFwd, in.rnRev, in.fnFwd, in.fnRev, in.srcFwd, in.srcRev} {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)
	return buf
}

func decodeID(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func internString(fwd, rev *kv.Store, nextID *uint64, s []byte) (id uint64, wasNew bool, err error) {
	if v, ok, err := fwd.Find(s); err != nil {
		return 0, false, err
	} else if ok {
		return decodeID(v), false, nil
	}
	id = *nextID
	*nextID++
	if err := fwd.Insert(s, encodeID(id)); err != nil {
		return 0, false, err
	}
	if err := rev.Insert(encodeID(id), s); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetOrInsert interns (repositoryName, filename), returning its dense
// source_id and whether this is the first time this pair has been seen.
func (in *Interner) GetOrInsert(repositoryName, filename []byte) (sourceID uint64, wasNew bool, err error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	rnID, _, err := internString(in.rnFwd, in.rnRev, &in.nextRNID, repositoryName)
	if err != nil {
		return 0, false, fmt.Errorf("interner: intern repository name: %w", err)
	}
	fnID, _, err := internString(in.fnFwd, in.fnRev, &in.nextFNID, filename)
	if err != nil {
		return 0, false, fmt.Errorf("interner: intern filename: %w", err)
	}

	pairKey := append(append([]byte(nil), encodeID(rnID)...), encodeID(fnID)...)
	if v, ok, err := in.srcFwd.Find(pairKey); err != nil {
		return 0, false, err
	} else if ok {
		return decodeID(v), false, nil
	}

	sourceID = in.nextSourceID
	in.nextSourceID++
	if err := in.srcFwd.Insert(pairKey, encodeID(sourceID)); err != nil {
		return 0, false, fmt.Errorf("interner: insert source forward: %w", err)
	}
	if err := in.srcRev.Insert(encodeID(sourceID), pairKey); err != nil {
		return 0, false, fmt.Errorf("interner: insert source reverse: %w", err)
	}
	return sourceID, true, nil
}

// LookupSource resolves a source_id back to its (repositoryName,
// filename) pair. It fails only if the id was never allocated.
func (in *Interner) LookupSource(sourceID uint64) (repositoryName, filename []byte, err error) {
	pairKey, ok, err := in.srcRev.Find(encodeID(sourceID))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("interner: source id %d never allocated", sourceID)
	}
	rnID := decodeID(pairKey[0:8])
	fnID := decodeID(pairKey[8:16])

	rn, ok, err := in.rnRev.Find(encodeID(rnID))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("interner: repository name id %d never allocated", rnID)
	}
	fn, ok, err := in.fnRev.Find(encodeID(fnID))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("interner: filename id %d never allocated", fnID)
	}
	return rn, fn, nil
}

// SourceCount returns the number of distinct sources interned so far.
func (in *Interner) SourceCount() int {
	return in.srcRev.Len()
}
