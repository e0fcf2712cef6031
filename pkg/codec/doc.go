// Package codec describes the on-disk layout of account records stored in
// append-only containers.
//
// # Record Format
//
// Records are laid out back to back, each structure starting on an 8-byte
// boundary:
//
//	[Header(48)][Attributes(56)][Hash(32)][Data(DataLength)][pad to 8]
//
// Header:
//   - WriteVersion: 64-bit writer sequence number (little-endian)
//   - DataLength: 64-bit payload length in bytes (little-endian)
//   - Key: 32-byte account key
//
// Attributes:
//   - Balance: 64-bit unsigned integer (little-endian)
//   - RentEpoch: 64-bit unsigned integer (little-endian)
//   - Owner: 32-byte key of the owning program
//   - Executable: one byte, non-zero means true, followed by 7 padding bytes
//
// Hash is a 32-byte content hash, followed by DataLength payload bytes.
//
// # Decoding
//
// Every structure is decoded by reading each field at its fixed byte offset.
// The caller is responsible for bounds checking the slice it passes in; the
// decoders only verify that the slice is long enough for the structure.
//
// # Keys
//
// Pubkey values render as base58, which is the human-readable form used by
// the destination stores and the configuration file.
package codec
