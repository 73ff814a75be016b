// Package record defines the on-disk wire format for a single message:
// a fixed 16-byte header (length, timestamp, checksum) followed by the
// opaque payload. The offset is never part of the serialized bytes - it
// is assigned by the Log and recovered positionally from the index.
package record

import (
	"encoding/binary"
	"time"

	"github.com/stackwave/qlog/internal/errs"
)

// enc is the byte order for every multi-byte field in a record or index
// entry.
var enc = binary.LittleEndian

// headerSize is len(data_length) + len(timestamp_ms) + len(checksum).
const headerSize = 4 + 8 + 4

// MaxSanityLength bounds data_length during deserialization so a corrupt
// header can never trigger an enormous allocation.
const MaxSanityLength = 16 * 1024 * 1024

// Record is a single message: an offset assigned by the Log, a creation
// timestamp, the opaque payload, and an XOR checksum over the payload.
type Record struct {
	Offset      uint64
	TimestampMs int64
	Data        []byte
	Checksum    uint32
}

// checksum XORs every payload byte, extended to 32 bits.
func checksum(data []byte) uint32 {
	var c byte
	for _, b := range data {
		c ^= b
	}
	return uint32(c)
}

// New builds a Record for data captured at the current wall-clock time.
// The offset is left zero; the caller (Segment) assigns it.
func New(data []byte) *Record {
	return &Record{
		TimestampMs: time.Now().UnixMilli(),
		Data:        data,
		Checksum:    checksum(data),
	}
}

// Size returns the serialized size of the record: header plus payload.
func (r *Record) Size() int {
	return headerSize + len(r.Data)
}

// Marshal serializes the record into the wire format of §3:
// [data_length:u32][timestamp_ms:i64][checksum:u32][data:data_length].
// The offset is not written.
func (r *Record) Marshal() []byte {
	buf := make([]byte, r.Size())
	enc.PutUint32(buf[0:4], uint32(len(r.Data)))
	enc.PutUint64(buf[4:12], uint64(r.TimestampMs))
	enc.PutUint32(buf[12:16], r.Checksum)
	copy(buf[16:], r.Data)
	return buf
}

// UnmarshalHeader decodes the fixed 16-byte header, returning the
// payload length, timestamp and checksum it describes. It fails Corrupt
// when the header is short or the declared length is out of sanity
// bounds.
func UnmarshalHeader(header []byte) (dataLength uint32, timestampMs int64, sum uint32, err error) {
	if len(header) != headerSize {
		return 0, 0, 0, errs.New(errs.Corrupt, "short record header")
	}
	dataLength = enc.Uint32(header[0:4])
	if dataLength == 0 || dataLength > MaxSanityLength {
		return 0, 0, 0, errs.New(errs.Corrupt, "record length out of bounds")
	}
	timestampMs = int64(enc.Uint64(header[4:12]))
	sum = enc.Uint32(header[12:16])
	return dataLength, timestampMs, sum, nil
}

// Unmarshal decodes a full serialized record (header + data), verifying
// the checksum. offset is supplied by the caller, never read from the
// wire bytes.
func Unmarshal(offset uint64, raw []byte) (*Record, error) {
	if len(raw) < headerSize {
		return nil, errs.New(errs.Corrupt, "short record")
	}
	dataLength, ts, sum, err := UnmarshalHeader(raw[:headerSize])
	if err != nil {
		return nil, err
	}
	if len(raw) != headerSize+int(dataLength) {
		return nil, errs.New(errs.Corrupt, "truncated record payload")
	}
	data := make([]byte, dataLength)
	copy(data, raw[headerSize:])
	if checksum(data) != sum {
		return nil, errs.New(errs.Corrupt, "checksum mismatch").WithOffset(offset)
	}
	return &Record{Offset: offset, TimestampMs: ts, Data: data, Checksum: sum}, nil
}

// HeaderSize exposes headerSize for callers (store, segment) that need
// to read a fixed-size prefix before knowing the payload length.
const HeaderSize = headerSize
