// Package tlv implements the binary Type-Length-Value codec that backs the
// on-disk trust database (spec §4.1). A record is a 2-byte big-endian tag,
// a 4-byte big-endian length, and that many bytes of payload. Composite
// records (sequences, nested structs) carry child records back-to-back as
// their payload; unknown tags inside a composite are skipped by length so
// newer writers stay readable by older readers.
package tlv

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/openharmony/security-deviceauth/errors"
)

// Tag identifies a record's meaning within its parent. Tags are only
// required to be unique among siblings, not globally — the decoder never
// does a global lookup, only a scan of one composite's children.
type Tag uint16

// Top-level schema (spec §4.1).
const (
	TagDB      Tag = 0x0001
	TagVersion Tag = 0x6001
	TagGroups  Tag = 0x6002
	TagDevices Tag = 0x6003

	CurrentVersion uint32 = 1
)

// GroupRecord / DeviceRecord field tags. Scoped to their respective parent
// composite; arbitrary small values, stable once assigned since they are
// persisted on disk.
const (
	TagGroupRecord           Tag = 0x0001
	TagGroupName             Tag = 0x0101
	TagGroupID               Tag = 0x0102
	TagGroupType             Tag = 0x0103
	TagGroupVisibility       Tag = 0x0104
	TagGroupExpireTime       Tag = 0x0105
	TagGroupUserIDHash       Tag = 0x0106
	TagGroupSharedUserHashes Tag = 0x0107
	TagGroupManagers         Tag = 0x0108
	TagGroupFriends          Tag = 0x0109

	TagDeviceRecord       Tag = 0x0002
	TagDeviceGroupID      Tag = 0x0201
	TagDeviceUDID         Tag = 0x0202
	TagDeviceAuthID       Tag = 0x0203
	TagDeviceUserIDHash   Tag = 0x0204
	TagDeviceServiceType  Tag = 0x0205
	TagDeviceExt          Tag = 0x0206
	TagDeviceInfo         Tag = 0x0207
	TagDeviceSigningKey   Tag = 0x0208
	TagDeviceInfoCredType Tag = 0x0301
	TagDeviceInfoDevType  Tag = 0x0302
	TagDeviceInfoLastTm   Tag = 0x0303

	// TagStringItem tags one element inside a string sequence
	// (shared_user_id_hashes, managers, friends).
	TagStringItem Tag = 0x0001
)

// MaxRecordLength bounds a single record's payload (spec §4.1: 4 MiB).
const MaxRecordLength = 4 << 20

// record is one decoded (tag, payload) pair.
type record struct {
	tag     Tag
	payload []byte
}

// Encoder accumulates records for one composite's payload.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded byte string built so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) writeHeader(tag Tag, length int) {
	var hdr [6]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(tag))
	binary.BigEndian.PutUint32(hdr[2:6], uint32(length))
	e.buf.Write(hdr[:])
}

// WriteRaw writes a record whose payload is exactly payload.
func (e *Encoder) WriteRaw(tag Tag, payload []byte) {
	e.writeHeader(tag, len(payload))
	e.buf.Write(payload)
}

// WriteComposite writes a record whose payload is the bytes built by fn
// against a fresh Encoder.
func (e *Encoder) WriteComposite(tag Tag, fn func(*Encoder)) {
	child := NewEncoder()
	fn(child)
	e.WriteRaw(tag, child.Bytes())
}

// WriteU32 writes a fixed-width big-endian uint32 record.
func (e *Encoder) WriteU32(tag Tag, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.WriteRaw(tag, b[:])
}

// WriteI32 writes a fixed-width big-endian int32 record.
func (e *Encoder) WriteI32(tag Tag, v int32) {
	e.WriteU32(tag, uint32(v))
}

// WriteI64 writes a fixed-width big-endian int64 record.
func (e *Encoder) WriteI64(tag Tag, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.WriteRaw(tag, b[:])
}

// WriteString writes a string record: the bytes of s followed by a \0
// terminator, exactly as spec §4.1 describes.
func (e *Encoder) WriteString(tag Tag, s string) {
	payload := make([]byte, len(s)+1)
	copy(payload, s)
	payload[len(s)] = 0
	e.WriteRaw(tag, payload)
}

// WriteStringSeq writes a composite record containing one TagStringItem
// child per element, in order.
func (e *Encoder) WriteStringSeq(tag Tag, items []string) {
	e.WriteComposite(tag, func(c *Encoder) {
		for _, s := range items {
			c.WriteString(TagStringItem, s)
		}
	})
}

// Decoder reads sibling records out of one composite's payload.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps a byte slice (one composite's full payload, or the
// whole file) for sequential record reads.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Done reports whether every byte has been consumed.
func (d *Decoder) Done() bool { return d.pos >= len(d.data) }

// Next reads the next record's tag and payload.
func (d *Decoder) Next() (Tag, []byte, error) {
	remaining := len(d.data) - d.pos
	if remaining < 6 {
		if remaining == 0 {
			return 0, nil, io.EOF
		}
		return 0, nil, errors.New(errors.CodeTlvTruncated, "short record header")
	}
	tag := Tag(binary.BigEndian.Uint16(d.data[d.pos : d.pos+2]))
	length := binary.BigEndian.Uint32(d.data[d.pos+2 : d.pos+6])
	d.pos += 6

	if length > MaxRecordLength {
		return 0, nil, errors.Newf(errors.CodeTlvBadLength, "record length %d exceeds max %d", length, MaxRecordLength)
	}
	if int(length) > len(d.data)-d.pos {
		return 0, nil, errors.Newf(errors.CodeTlvBadLength, "record length %d exceeds remaining buffer %d", length, len(d.data)-d.pos)
	}
	payload := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)
	return tag, payload, nil
}

// ReadU32 decodes a fixed-width big-endian uint32 payload.
func ReadU32(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, errors.New(errors.CodeTlvBadLength, "u32 record must be 4 bytes")
	}
	return binary.BigEndian.Uint32(payload), nil
}

// ReadI32 decodes a fixed-width big-endian int32 payload.
func ReadI32(payload []byte) (int32, error) {
	v, err := ReadU32(payload)
	return int32(v), err
}

// ReadI64 decodes a fixed-width big-endian int64 payload.
func ReadI64(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, errors.New(errors.CodeTlvBadLength, "i64 record must be 8 bytes")
	}
	return int64(binary.BigEndian.Uint64(payload)), nil
}

// ReadString decodes a \0-terminated string payload.
func ReadString(payload []byte) (string, error) {
	if len(payload) == 0 || payload[len(payload)-1] != 0 {
		return "", errors.New(errors.CodeTlvBadString, "missing null terminator")
	}
	return string(payload[:len(payload)-1]), nil
}

// ReadStringSeq decodes a composite of TagStringItem children into a
// slice, preserving order.
func ReadStringSeq(payload []byte) ([]string, error) {
	dec := NewDecoder(payload)
	var out []string
	for !dec.Done() {
		tag, item, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if tag != TagStringItem {
			continue // forward-compatible: skip unknown tags
		}
		s, err := ReadString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
