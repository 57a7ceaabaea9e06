package passwd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Cost is the bcrypt cost factor for newly minted hashes. 2^12 rounds takes
// roughly 250ms on current hardware, which is the point: offline brute force
// has to pay the same price per guess.
const Cost = 12

// MinGeneratedLength is the floor for GenerateSecurePassword.
const MinGeneratedLength = 12

var (
	// ErrEmptyPassword reports a missing or empty password argument.
	ErrEmptyPassword = errors.New("passwd: password must be a non-empty string")
	// ErrEmptyHash reports a missing or empty hash argument.
	ErrEmptyHash = errors.New("passwd: hash must be a non-empty string")
	// ErrLengthTooShort reports a generation request below MinGeneratedLength.
	ErrLengthTooShort = errors.New("passwd: password length must be at least 12 characters")
)

// DummyHash is a valid cost-12 hash of an unguessable throwaway value.
// Login paths compare against it when the email is unknown so the response
// time matches a real verification.
const DummyHash = "$2a$12$K3JNi5xUQ3uXZBeYxS2COe4JR1mZ5k8lGQaqmnF7hO9XGJYyHEK2e"

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "@$!%*?&"
)

// Hasher wraps bcrypt with a concurrency cap. Each hash burns hundreds of
// milliseconds of CPU, so unbounded parallel hashing would starve the rest of
// the request path. The semaphore keeps at most MaxConcurrent hashes in
// flight; callers beyond that wait.
type Hasher struct {
	sem *semaphore.Weighted
}

// DefaultMaxConcurrent bounds simultaneous bcrypt operations per Hasher.
const DefaultMaxConcurrent = 4

// NewHasher returns a Hasher allowing up to maxConcurrent simultaneous
// hash/verify operations. Values <= 0 fall back to DefaultMaxConcurrent.
func NewHasher(maxConcurrent int64) *Hasher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Hasher{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Hash derives a salted bcrypt hash of password at the current Cost.
// The cost factor is embedded in the hash's own $2b$<cost>$ prefix and is
// never stored separately.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("passwd: hashing failed: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the bcrypt hash. A wrong password
// is not an error, it is simply false; only empty inputs are rejected.
func (h *Hasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if password == "" {
		return false, ErrEmptyPassword
	}
	if hash == "" {
		return false, ErrEmptyHash
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	// Any comparison failure (mismatch, malformed hash) means "no match".
	// A hash we cannot parse can never authenticate anyone.
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// NeedsRehash reports whether hash was produced with a cost factor below the
// current Cost and should be transparently upgraded on next successful login.
// Unrecognized formats report true: treat unknown as "needs upgrade".
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < Cost
}

// GenerateSecurePassword produces a random password of the given length with
// at least one character from each of the four classes (upper, lower, digit,
// special). The remaining characters are drawn uniformly from all classes and
// the result is shuffled so the guaranteed characters don't sit at fixed
// positions.
func GenerateSecurePassword(length int) (string, error) {
	if length < MinGeneratedLength {
		return "", ErrLengthTooShort
	}

	all := upperChars + lowerChars + digitChars + specialChars

	out := make([]byte, 0, length)
	for _, class := range []string{upperChars, lowerChars, digitChars, specialChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates with crypto/rand indices.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("passwd: shuffle failed: %w", err)
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}

	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("passwd: random draw failed: %w", err)
	}
	return set[n.Int64()], nil
}
