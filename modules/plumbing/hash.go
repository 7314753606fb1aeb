package plumbing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

// The engine keeps BLAKE3 (github.com/zeebo/blake3) as its content hash but
// truncates the digest to 20 bytes / 40 hex characters, matching the oid
// width used throughout the on-disk layout (HEAD, refs, index, objects/<hh>).
const (
	HashDigestSize = 20
	HashHexSize    = HashDigestSize * 2
)

const ZeroOID = "0000000000000000000000000000000000000000"

// Hash is a truncated BLAKE3 object identifier.
type Hash [HashDigestSize]byte

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	hashBytes, _ := hex.DecodeString(s)
	copy(h[:], hashBytes)
	return nil
}

// MarshalText/UnmarshalText let a Hash be embedded directly in TOML-encoded
// sequencer state (github.com/BurntSushi/toml) without a custom codec.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	hashBytes, _ := hex.DecodeString(string(text))
	copy(h[:], hashBytes)
	return nil
}

// ZeroHash is the Hash zero value, used as "no parent" / "no commit".
var ZeroHash Hash

// NewHash parses a hex string into a Hash, returning the zero hash on
// malformed input; callers that must distinguish parse failure use NewHashEx.
func NewHash(s string) Hash {
	b, _ := hex.DecodeString(s)
	var h Hash
	copy(h[:], b)
	return h
}

// NewHashEx parses s, reporting an error for anything that is not a
// syntactically valid 40-hex oid.
func NewHashEx(s string) (Hash, error) {
	if !ValidateHashHex(s) {
		return ZeroHash, fmt.Errorf("ember: '%s' is not a valid object name", s)
	}
	return NewHash(s), nil
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Shorten returns the length of the shortest non-zero-tail prefix (minimum
// 4 bytes), used when rendering abbreviated oids in log-style output.
func (h Hash) Shorten() int {
	i := HashDigestSize - 1
	for ; i >= 4; i-- {
		if h[i] != 0 {
			return i + 1
		}
	}
	return i + 1
}

func (h Hash) Prefix() string {
	return hex.EncodeToString(h[:h.Shorten()])
}

// HashesSort sorts a slice of Hash in increasing byte order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

// HashSlice implements sort.Interface for []Hash.
type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// ValidateHashHex reports whether s is a syntactically valid 40-hex oid.
func ValidateHashHex(s string) bool {
	if len(s) != HashHexSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// IsLooseDir reports whether name is a two-hex-digit fan-out directory name.
func IsLooseDir(s string) bool {
	if len(s) != 2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Hasher wraps a BLAKE3 hash.Hash and truncates Sum to HashDigestSize.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: blake3.New()}
}

func (h Hasher) Sum() (hash Hash) {
	copy(hash[:], h.Hash.Sum(nil)[:HashDigestSize])
	return
}

// ComputeHash hashes framed bytes (kind || 0x00 || payload) in one call, for
// callers that need HashObject-style content addressing without a round trip
// through disk.
func ComputeHash(framed []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(framed)
	return h.Sum()
}
