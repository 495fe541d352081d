package mwixnet

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// swapRecordVersion is the only record format this module writes or accepts.
const swapRecordVersion = 0

// swapKeyPrefix tags every swap record's key, leaving room for other record
// kinds to share the same database without colliding.
const swapKeyPrefix = 'S'

// StoreErrorKind discriminates the ways SwapStore operations can fail.
type StoreErrorKind int

const (
	OpenError StoreErrorKind = iota
	ReadError
	WriteError
	StoreSerializationError
	UnsupportedProtocolVersion
	AlreadyExists
)

func (k StoreErrorKind) String() string {
	switch k {
	case OpenError:
		return "OpenError"
	case ReadError:
		return "ReadError"
	case WriteError:
		return "WriteError"
	case StoreSerializationError:
		return "SerializationError"
	case UnsupportedProtocolVersion:
		return "UnsupportedProtocolVersion"
	case AlreadyExists:
		return "AlreadyExists"
	default:
		return "UnknownStoreError"
	}
}

// StoreError wraps a SwapStore failure with its kind and, for AlreadyExists,
// the offending input commitment.
type StoreError struct {
	Kind   StoreErrorKind
	Commit Commitment
	Cause  error
}

func (e *StoreError) Error() string {
	if e.Kind == AlreadyExists {
		return "AlreadyExists: " + hex.EncodeToString(e.Commit[:])
	}
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *StoreError) Unwrap() error { return e.Cause }

func storeErr(kind StoreErrorKind, cause error) *StoreError {
	return &StoreError{Kind: kind, Cause: cause}
}

// ErrSwapNotFound is the ReadError cause returned when no record exists for
// the requested input commitment.
var ErrSwapNotFound = errors.New("swap record not found")

// SwapStatus is the tagged lifecycle state of one swap record: created
// Unprocessed, moved to InProcess once included in a posted round
// transaction, and to Completed once the kernel is observed on chain.
// Records are never deleted.
type SwapStatus struct {
	Tag        SwapStatusTag
	KernelHash Hash
	BlockHash  Hash
}

type SwapStatusTag uint8

const (
	StatusUnprocessed SwapStatusTag = 0
	StatusInProcess   SwapStatusTag = 1
	StatusCompleted   SwapStatusTag = 2
)

// SwapData is one persisted swap record, keyed in storage by Input.Commit.
type SwapData struct {
	Excess       SecretKey
	OutputCommit Commitment
	RangeProof   *RangeProof
	Input        Input
	Fee          uint64
	Onion        Onion
	Status       SwapStatus
}

// serialize encodes a SwapData record as version(u8) || excess(32B) ||
// output_commit(33B) || rangeproof-optional || Input || fee(u64) || Onion ||
// SwapStatus.
func (d SwapData) serialize() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, swapRecordVersion)
	buf = append(buf, d.Excess[:]...)
	buf = append(buf, d.OutputCommit[:]...)

	if d.RangeProof != nil {
		buf = append(buf, 1)
		buf = append(buf, *d.RangeProof...)
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, byte(d.Input.Features))
	buf = append(buf, d.Input.Commit[:]...)
	buf = appendUint64(buf, d.Fee)

	onionBytes, err := d.Onion.Serialize()
	if err != nil {
		return nil, err
	}
	buf = appendUint64(buf, uint64(len(onionBytes)))
	buf = append(buf, onionBytes...)

	buf = append(buf, byte(d.Status.Tag))
	switch d.Status.Tag {
	case StatusUnprocessed:
	case StatusInProcess:
		buf = append(buf, d.Status.KernelHash[:]...)
	case StatusCompleted:
		buf = append(buf, d.Status.KernelHash[:]...)
		buf = append(buf, d.Status.BlockHash[:]...)
	default:
		return nil, errors.Errorf("swapdata: unknown status tag %d", d.Status.Tag)
	}

	return buf, nil
}

// deserializeSwapData decodes the layout serialize produces.
func deserializeSwapData(b []byte) (SwapData, error) {
	if len(b) < 1 {
		return SwapData{}, errors.New("swapdata: empty record")
	}
	if b[0] != swapRecordVersion {
		return SwapData{}, errors.Errorf("swapdata: unsupported version %d", b[0])
	}
	offset := 1

	var d SwapData
	if len(b)-offset < SecretKeySize {
		return SwapData{}, errors.New("swapdata: truncated excess")
	}
	copy(d.Excess[:], b[offset:offset+SecretKeySize])
	offset += SecretKeySize

	if len(b)-offset < CommitmentSize {
		return SwapData{}, errors.New("swapdata: truncated output_commit")
	}
	copy(d.OutputCommit[:], b[offset:offset+CommitmentSize])
	offset += CommitmentSize

	if len(b)-offset < 1 {
		return SwapData{}, errors.New("swapdata: truncated rangeproof tag")
	}
	tag := b[offset]
	offset++
	switch tag {
	case 0:
		d.RangeProof = nil
	case 1:
		return deserializeSwapDataWithRangeproof(b, offset)
	default:
		return SwapData{}, errors.Errorf("swapdata: invalid rangeproof tag %d", tag)
	}

	return deserializeSwapDataTail(d, b, offset)
}

// deserializeSwapDataWithRangeproof handles the case where a rangeproof is
// present. The rangeproof carries no length prefix of its own, so the
// Input/fee fields that follow it can only be located once the proof's end
// is known. Rangeproofs produced by this module self-describe their length
// via their own bit-width byte (see rangeproof.go), so the proof's byte
// length is computed from that byte and the remaining fields are then parsed
// forward.
func deserializeSwapDataWithRangeproof(b []byte, offset int) (SwapData, error) {
	var d SwapData
	// Replay the fixed-width prefix now that we know a rangeproof follows.
	copy(d.Excess[:], b[1:1+SecretKeySize])
	copy(d.OutputCommit[:], b[1+SecretKeySize:1+SecretKeySize+CommitmentSize])

	if offset >= len(b) {
		return SwapData{}, errors.New("swapdata: truncated rangeproof")
	}
	bitWidth := int(b[offset])
	proofLen := 1 + bitWidth*bitProofSize
	if len(b)-offset < proofLen {
		return SwapData{}, errors.New("swapdata: truncated rangeproof body")
	}
	proof := RangeProof(append([]byte(nil), b[offset:offset+proofLen]...))
	d.RangeProof = &proof
	offset += proofLen

	return deserializeSwapDataTail(d, b, offset)
}

// deserializeSwapDataTail decodes the Input, fee, Onion and SwapStatus
// fields that follow the rangeproof-optional field, common to both branches
// above.
func deserializeSwapDataTail(d SwapData, b []byte, offset int) (SwapData, error) {
	if len(b)-offset < 1+CommitmentSize+8 {
		return SwapData{}, errors.New("swapdata: truncated input/fee")
	}
	d.Input.Features = OutputFeatures(b[offset])
	offset++
	copy(d.Input.Commit[:], b[offset:offset+CommitmentSize])
	offset += CommitmentSize
	d.Fee = binary.BigEndian.Uint64(b[offset : offset+8])
	offset += 8

	if len(b)-offset < 8 {
		return SwapData{}, errors.New("swapdata: truncated onion length")
	}
	onionLen := binary.BigEndian.Uint64(b[offset : offset+8])
	offset += 8
	if uint64(len(b)-offset) < onionLen {
		return SwapData{}, errors.New("swapdata: truncated onion body")
	}
	onion, err := DeserializeOnion(b[offset : offset+int(onionLen)])
	if err != nil {
		return SwapData{}, errors.Wrap(err, "swapdata: onion")
	}
	d.Onion = onion
	offset += int(onionLen)

	if len(b)-offset < 1 {
		return SwapData{}, errors.New("swapdata: truncated status tag")
	}
	statusTag := SwapStatusTag(b[offset])
	offset++

	var status SwapStatus
	status.Tag = statusTag
	switch statusTag {
	case StatusUnprocessed:
	case StatusInProcess:
		if len(b)-offset < HashSize {
			return SwapData{}, errors.New("swapdata: truncated kernel hash")
		}
		copy(status.KernelHash[:], b[offset:offset+HashSize])
		offset += HashSize
	case StatusCompleted:
		if len(b)-offset < 2*HashSize {
			return SwapData{}, errors.New("swapdata: truncated completed status")
		}
		copy(status.KernelHash[:], b[offset:offset+HashSize])
		offset += HashSize
		copy(status.BlockHash[:], b[offset:offset+HashSize])
		offset += HashSize
	default:
		return SwapData{}, errors.Errorf("swapdata: invalid status tag %d", statusTag)
	}
	d.Status = status

	return d, nil
}

// SwapStore is the durable, process-wide record of accepted swap requests,
// backed by an embedded ordered key-value database (goleveldb, standing in
// for grin_store/LMDB). Every operation is wrapped in a single write batch
// so a successful return implies a durable commit.
type SwapStore struct {
	db *leveldb.DB
}

// OpenSwapStore opens (creating if absent) the database at path.
func OpenSwapStore(path string) (*SwapStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, storeErr(OpenError, err)
	}
	return &SwapStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SwapStore) Close() error {
	return s.db.Close()
}

func swapKey(inputCommit Commitment) []byte {
	key := make([]byte, 0, 1+CommitmentSize)
	key = append(key, swapKeyPrefix)
	key = append(key, inputCommit[:]...)
	return key
}

// SaveSwap persists record, keyed by record.Input.Commit. If overwrite is
// false and a record already exists for that key, it returns a StoreError
// of kind AlreadyExists and leaves the store untouched.
func (s *SwapStore) SaveSwap(record SwapData, overwrite bool) error {
	key := swapKey(record.Input.Commit)

	if !overwrite {
		exists, err := s.db.Has(key, nil)
		if err != nil {
			return storeErr(ReadError, err)
		}
		if exists {
			return &StoreError{Kind: AlreadyExists, Commit: record.Input.Commit}
		}
	}

	value, err := record.serialize()
	if err != nil {
		return storeErr(StoreSerializationError, err)
	}

	batch := new(leveldb.Batch)
	batch.Put(key, value)
	if err := s.db.Write(batch, nil); err != nil {
		return storeErr(WriteError, err)
	}
	return nil
}

// GetSwap reads the record for inputCommit, or a ReadError wrapping
// ErrSwapNotFound if none exists.
func (s *SwapStore) GetSwap(inputCommit Commitment) (SwapData, error) {
	value, err := s.db.Get(swapKey(inputCommit), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return SwapData{}, storeErr(ReadError, ErrSwapNotFound)
		}
		return SwapData{}, storeErr(ReadError, err)
	}

	record, err := deserializeSwapData(value)
	if err != nil {
		return SwapData{}, storeErr(StoreSerializationError, err)
	}
	return record, nil
}

// SwapExists reports whether a record exists for inputCommit.
func (s *SwapStore) SwapExists(inputCommit Commitment) (bool, error) {
	exists, err := s.db.Has(swapKey(inputCommit), nil)
	if err != nil {
		return false, storeErr(ReadError, err)
	}
	return exists, nil
}

// SwapsIter returns every swap record in ascending lexicographic order of
// the full storage key (equivalently, of Input.Commit).
func (s *SwapStore) SwapsIter() ([]SwapData, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{swapKeyPrefix}), nil)
	defer iter.Release()

	var records []SwapData
	for iter.Next() {
		record, err := deserializeSwapData(iter.Value())
		if err != nil {
			return nil, storeErr(StoreSerializationError, err)
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, storeErr(ReadError, err)
	}
	return records, nil
}

