package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Domain prefixes for derived identifiers. The version suffix allows the
// derivation to change without colliding with existing records.
const (
	DomainRecord   = "roomsync/record/v1"
	DomainProtocol = "roomsync/protocol/v1"
)

// idLength is the number of hex characters kept from a derived hash.
const idLength = 32

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProtocolTag derives the protocol tag for a protocol name such as
// "RoomsV1". Equal names always produce equal tags.
func ProtocolTag(name string) Protocol {
	return Protocol(hashWithDomain(DomainProtocol, []byte(name))[:idLength])
}

// RecordID derives the final path segment of the record at (parent, slot).
func RecordID(parent RecordPath, slot uint32) string {
	data := make([]byte, 0, len(parent)+5)
	data = append(data, parent...)
	data = append(data, 0x00)
	data = binary.BigEndian.AppendUint32(data, slot)
	return hashWithDomain(DomainRecord, data)[:idLength]
}
