package cache

import (
	"encoding/binary"
	"errors"
	"time"
)

// Envelope layout, version 1:
//
//	[0]     version
//	[1:9]   storedAt, unix nanoseconds, big endian
//	[9:17]  ttl in nanoseconds, big endian; zero means "never expires"
//	[17:]   payload
//
// The envelope is what lives in the durable store; sizes reported by Stats
// and enforced by EvictBySize are envelope sizes.
const (
	envelopeVersion    = 1
	envelopeHeaderSize = 17
)

// errBadEnvelope marks a stored value that cannot be decoded. The engine
// treats such entries as garbage: logged, deleted, reported as a miss.
var errBadEnvelope = errors.New("bad entry envelope")

// entry is a decoded cache record.
type entry struct {
	payload  []byte
	storedAt int64 // unix nanoseconds
	ttl      time.Duration
}

// expired reports whether the entry's deadline has passed at the given
// time (unix nanoseconds). The deadline itself is still live: expiry
// requires now to be strictly past storedAt+ttl. Zero TTL never expires.
func (e entry) expired(now int64) bool {
	return e.ttl > 0 && now > e.storedAt+e.ttl.Nanoseconds()
}

// encodeEntry serializes an entry into its versioned envelope.
func encodeEntry(e entry) []byte {
	buf := make([]byte, envelopeHeaderSize+len(e.payload))
	buf[0] = envelopeVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(e.storedAt))
	binary.BigEndian.PutUint64(buf[9:17], uint64(e.ttl.Nanoseconds()))
	copy(buf[envelopeHeaderSize:], e.payload)
	return buf
}

// decodeEntry parses a stored envelope. Unknown versions and truncated
// records fail with errBadEnvelope.
func decodeEntry(raw []byte) (entry, error) {
	if len(raw) < envelopeHeaderSize || raw[0] != envelopeVersion {
		return entry{}, errBadEnvelope
	}
	e := entry{
		storedAt: int64(binary.BigEndian.Uint64(raw[1:9])),
		ttl:      time.Duration(binary.BigEndian.Uint64(raw[9:17])),
	}
	if len(raw) > envelopeHeaderSize {
		e.payload = raw[envelopeHeaderSize:]
	}
	return e, nil
}
