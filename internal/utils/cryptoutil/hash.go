// Package cryptoutil provides the hashing helpers behind bundle checksums
package cryptoutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	harnesserrors "github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// HashAlgorithm identifies a supported checksum algorithm
type HashAlgorithm string

const (
	// MD5 algorithm (not recommended for security-critical applications)
	MD5 HashAlgorithm = "md5"

	// SHA1 algorithm (not recommended for security-critical applications)
	SHA1 HashAlgorithm = "sha1"

	// SHA256 algorithm
	SHA256 HashAlgorithm = "sha256"

	// SHA512 algorithm
	SHA512 HashAlgorithm = "sha512"
)

func newHash(algorithm HashAlgorithm) (hash.Hash, error) {
	switch strings.ToLower(string(algorithm)) {
	case string(MD5):
		return md5.New(), nil
	case string(SHA1):
		return sha1.New(), nil
	case string(SHA256):
		return sha256.New(), nil
	case string(SHA512):
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported hash algorithm '%s'", harnesserrors.ErrInvalidArgument, algorithm)
	}
}

// CalculateFileChecksum calculates a file's checksum using the specified algorithm
func CalculateFileChecksum(filePath string, algorithm HashAlgorithm) (string, error) {
	hasher, err := newHash(algorithm)
	if err != nil {
		return "", err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", harnesserrors.ErrFileNotFound, filePath)
		}
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash operation failed: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyFileChecksum verifies a file's checksum against an expected value.
// Comparison is case-insensitive since checksum files mix hex casings.
func VerifyFileChecksum(filePath, expectedChecksum string, algorithm HashAlgorithm) (bool, error) {
	actualChecksum, err := CalculateFileChecksum(filePath, algorithm)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(actualChecksum, expectedChecksum), nil
}
