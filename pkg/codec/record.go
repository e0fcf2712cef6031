package codec

import (
	"encoding/binary"
	"fmt"
)

const (
	// AlignBoundary is the alignment of every structure inside a container.
	AlignBoundary = 8

	// HeaderSize is the encoded size of a Header:
	// [WriteVersion(8)][DataLength(8)][Key(32)]
	HeaderSize = 8 + 8 + PubkeySize

	// AttributesSize is the encoded size of Attributes including the trailing
	// padding: [Balance(8)][RentEpoch(8)][Owner(32)][Executable(1)][pad(7)]
	AttributesSize = 56

	// MaxContainerSize is the largest capacity a container may declare.
	MaxContainerSize uint64 = 16 * 1024 * 1024 * 1024
)

// Header is the leading structure of every stored record
type Header struct {
	WriteVersion uint64 // Writer-assigned sequence number, not used for ordering
	DataLength   uint64 // Length of the payload in bytes
	Key          Pubkey // Key of the account
}

// Attributes holds the account fields stored after the header
type Attributes struct {
	Balance    uint64
	RentEpoch  uint64
	Owner      Pubkey
	Executable bool
}

// Align rounds n up to the next AlignBoundary.
func Align(n int) int {
	return (n + AlignBoundary - 1) &^ (AlignBoundary - 1)
}

// DecodeHeader reads a Header from the first HeaderSize bytes of data
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("data too short for record header: %d < %d", len(data), HeaderSize)
	}

	var h Header
	h.WriteVersion = binary.LittleEndian.Uint64(data[0:8])
	h.DataLength = binary.LittleEndian.Uint64(data[8:16])
	copy(h.Key[:], data[16:16+PubkeySize])

	return h, nil
}

// DecodeAttributes reads Attributes from the first AttributesSize bytes of data
func DecodeAttributes(data []byte) (Attributes, error) {
	if len(data) < AttributesSize {
		return Attributes{}, fmt.Errorf("data too short for record attributes: %d < %d", len(data), AttributesSize)
	}

	var a Attributes
	a.Balance = binary.LittleEndian.Uint64(data[0:8])
	a.RentEpoch = binary.LittleEndian.Uint64(data[8:16])
	copy(a.Owner[:], data[16:16+PubkeySize])
	a.Executable = data[16+PubkeySize] != 0

	return a, nil
}

// DecodeHash reads a Hash from the first HashSize bytes of data
func DecodeHash(data []byte) (Hash, error) {
	var h Hash
	if len(data) < HashSize {
		return h, fmt.Errorf("data too short for content hash: %d < %d", len(data), HashSize)
	}
	copy(h[:], data[:HashSize])
	return h, nil
}
