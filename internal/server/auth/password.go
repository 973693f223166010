package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/randx"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2Tag = "argon2id"

// Argon2Params controls the cost of newly produced hashes. Verification
// always uses the parameters embedded in the stored string.
type Argon2Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params are used for new hashes in production.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Time:        1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher produces self-describing Argon2id PHC strings
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// and verifies them in constant time. bcrypt strings ($2a$, $2b$, $2y$) are
// still verified so imported accounts keep working; NeedsRehash flags them.
type PasswordHasher struct {
	params Argon2Params
	random randx.SecureRandom
}

// NewPasswordHasher validates p. Invalid parameters are a configuration error.
func NewPasswordHasher(p Argon2Params, rnd randx.SecureRandom) (*PasswordHasher, error) {
	problems := &common.ConfigurationError{}
	if p.Parallelism < 1 {
		problems.Add("argon2 parallelism must be at least 1")
	}
	if p.Time < 1 {
		problems.Add("argon2 time must be at least 1")
	}
	if p.Memory < 8*uint32(max(p.Parallelism, 1)) {
		problems.Add("argon2 memory must be at least 8 KiB per lane")
	}
	if p.SaltLength < 8 {
		problems.Add("argon2 salt must be at least 8 bytes")
	}
	if p.KeyLength < 16 {
		problems.Add("argon2 key must be at least 16 bytes")
	}
	if p.Memory > maxHashMemoryKiB || p.Time > maxHashTime || p.Parallelism > maxHashThreads || p.KeyLength > maxHashKeyLen {
		problems.Add("argon2 parameters exceed the limits accepted by Verify")
	}
	if rnd == nil {
		problems.Add("random source is required")
	}
	if err := problems.OrNil(); err != nil {
		return nil, err
	}
	return &PasswordHasher{params: p, random: rnd}, nil
}

// Hash derives a key from password with a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt, err := randx.Bytes(h.random, int(h.params.SaltLength))
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Tag,
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A well-formed mismatch
// is (false, nil); a corrupt hash string is common.ErrMalformedHash.
func (h *PasswordHasher) Verify(encoded, password string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", common.ErrMalformedHash, err)
		}
	}

	phc, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), phc.salt, phc.time, phc.memory, phc.parallelism, uint32(len(phc.key)))
	return subtle.ConstantTimeCompare(key, phc.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced by a legacy algorithm or
// with weaker parameters than the current ones.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	phc, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return phc.memory < h.params.Memory ||
		phc.time < h.params.Time ||
		phc.parallelism < h.params.Parallelism ||
		uint32(len(phc.key)) < h.params.KeyLength
}

// Upper bounds on parameters read from a stored hash. A corrupted row must
// not make Verify allocate or spin without limit.
const (
	maxHashMemoryKiB = 1 << 20 // 1 GiB
	maxHashTime      = 16
	maxHashThreads   = 64
	maxHashKeyLen    = 1024
)

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	malformed := func(reason string) error {
		return fmt.Errorf("%w: %s", common.ErrMalformedHash, reason)
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, malformed("not a PHC string")
	}
	if parts[1] != argon2Tag {
		return nil, malformed("unsupported algorithm " + parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, malformed("bad version")
	}
	if version != argon2.Version {
		return nil, malformed(fmt.Sprintf("unsupported version %d", version))
	}

	p := &phcHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return nil, malformed("bad parameters")
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, malformed("zero parameter")
	}
	if p.memory > maxHashMemoryKiB || p.time > maxHashTime || p.parallelism > maxHashThreads {
		return nil, malformed("parameter out of range")
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, malformed("bad salt")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, malformed("bad key")
	}
	if len(p.key) > maxHashKeyLen {
		return nil, malformed("key too long")
	}
	return p, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}
