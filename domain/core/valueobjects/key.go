package valueobjects

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Reserved tokens. None of them can be produced by Escape, so they never collide with a
// user value.
const (
	// RootToken is the hash input of the empty (root) context
	RootToken = "__ROOT__"

	// EMToken is the value of the hidden meta root that holds Settings
	EMToken = "__EM__"

	// EmptyToken replaces an empty value so no key is ever empty
	EmptyToken = "__EMPTY__"

	// SeparatorToken joins context values, and a context with its rank
	SeparatorToken = "__SEP__"
)

// Key is a value object identifying a Lexeme or context entry in every store.
// Keys are immutable and compare by value.
type Key string

// String returns the string representation of the Key
func (k Key) String() string {
	return string(k)
}

// IsZero checks if the Key is the zero value
func (k Key) IsZero() bool {
	return k == ""
}

// Hasher maps an escaped input string to a Key. Implementations must be pure and stable
// across process restarts.
type Hasher interface {
	Hash(input string) Key
}

// Blake2bHasher produces 128-bit blake2b digests encoded as lowercase hex
type Blake2bHasher struct{}

// Hash implements Hasher
func (Blake2bHasher) Hash(input string) Key {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b.New only fails for sizes outside 1..64 or oversized keys
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write([]byte(input))
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// IdentityHasher returns the escaped input unchanged. Used when thought hashing is
// disabled so stores and test fixtures carry readable keys.
type IdentityHasher struct{}

// Hash implements Hasher
func (IdentityHasher) Hash(input string) Key {
	return Key(input)
}

// NewHasher returns the identity hasher when hashing is disabled, blake2b otherwise
func NewHasher(disableHashing bool) Hasher {
	if disableHashing {
		return IdentityHasher{}
	}
	return Blake2bHasher{}
}

// KeyFactory derives thought and context keys with an injected Hasher
type KeyFactory struct {
	hasher Hasher
}

// NewKeyFactory creates a KeyFactory. A nil hasher defaults to blake2b.
func NewKeyFactory(hasher Hasher) KeyFactory {
	if hasher == nil {
		hasher = Blake2bHasher{}
	}
	return KeyFactory{hasher: hasher}
}

// Thought returns the key of the Lexeme for value
func (f KeyFactory) Thought(value string) Key {
	if value == "" {
		return f.hasher.Hash(EmptyToken)
	}
	return f.hasher.Hash(Escape(value))
}

// Context returns the key of the context entry listing the children of ctx
func (f KeyFactory) Context(ctx Context) Key {
	return f.hasher.Hash(contextInput(ctx))
}

// ContextWithRank returns the key of one specific child position, distinct from the key
// of all children of ctx
func (f KeyFactory) ContextWithRank(ctx Context, rank float64) Key {
	return f.hasher.Hash(contextInput(ctx) + SeparatorToken + strconv.FormatFloat(rank, 'g', -1, 64))
}

func contextInput(ctx Context) string {
	if len(ctx) == 0 {
		return RootToken
	}
	parts := make([]string, len(ctx))
	for i, value := range ctx {
		if value == "" {
			parts[i] = EmptyToken
			continue
		}
		parts[i] = Escape(value)
	}
	return strings.Join(parts, SeparatorToken)
}

// reserved lists the characters that are unsafe in store paths and key syntax. '_' is
// included so an escaped value can never contain SeparatorToken or a reserved token.
const reserved = "%./#$[]_"

// Escape percent-encodes the reserved characters of value. Values without reserved
// characters are returned unchanged.
func Escape(value string) string {
	if !strings.ContainsAny(value, reserved) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 8)
	for i := 0; i < len(value); i++ {
		c := value[i]
		if strings.IndexByte(reserved, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape reverses Escape
func Unescape(value string) (string, error) {
	if !strings.Contains(value, "%") {
		return value, nil
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(value) {
			return "", fmt.Errorf("truncated escape sequence at offset %d", i)
		}
		n, err := strconv.ParseUint(value[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid escape sequence %q: %w", value[i:i+3], err)
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return b.String(), nil
}
