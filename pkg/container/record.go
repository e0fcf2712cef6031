package container

import (
	"github.com/ssargent/snapshotetl/pkg/codec"
)

// Record is one stored account. Data aliases the container's mapping and is
// only valid while the container (or the iterator that produced the record)
// is open; use Clone to keep the account longer.
type Record struct {
	Header     codec.Header
	Attributes codec.Attributes
	Hash       codec.Hash
	Data       []byte
	Offset     int // Byte offset of the record within the container
	StoredSize int // Bytes from Offset to the next record, padding included
}

// Account is an owned copy of a Record, independent of any container.
type Account struct {
	Key          codec.Pubkey
	Owner        codec.Pubkey
	Balance      uint64
	RentEpoch    uint64
	Executable   bool
	WriteVersion uint64
	Hash         codec.Hash
	Data         []byte
}

// Clone copies the record out of the container's memory.
func (r Record) Clone() Account {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)

	return Account{
		Key:          r.Header.Key,
		Owner:        r.Attributes.Owner,
		Balance:      r.Attributes.Balance,
		RentEpoch:    r.Attributes.RentEpoch,
		Executable:   r.Attributes.Executable,
		WriteVersion: r.Header.WriteVersion,
		Hash:         r.Hash,
		Data:         data,
	}
}
