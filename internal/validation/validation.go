// Package validation provides input validation for contraship.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Target names become directory names under the build directory.
// Letters, digits, underscores and hyphens, starting with a letter, 1-64 chars.
var targetNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// ValidateTargetName validates a contract target name
func ValidateTargetName(name string) error {
	if name == "" {
		return errors.New("target name cannot be empty")
	}
	if len(name) > 64 {
		return errors.New("target name too long (max 64 chars)")
	}
	if !targetNameRegex.MatchString(name) {
		return errors.New("invalid target name: must start with a letter and contain only letters, digits, '_' or '-'")
	}
	return nil
}

// ValidateSourceName validates the logical file name of a source within a target.
// Logical names are written into a single flat build directory, so they may not
// contain path separators.
func ValidateSourceName(name string) error {
	if name == "" {
		return errors.New("source name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("source name must be a bare file name without directories")
	}
	if name == "." || name == ".." || name == "compiled.json" {
		return errors.New("reserved source name")
	}
	return nil
}

// ValidateCompilerVersion validates a pinned compiler version.
// Only full release versions (X.Y.Z) can be pinned.
func ValidateCompilerVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}

	versionWithV := "v" + normalized
	if !semver.IsValid(versionWithV) {
		return errors.New("invalid compiler version: must be in format X.Y.Z")
	}
	if semver.Prerelease(versionWithV) != "" || semver.Build(versionWithV) != "" {
		return errors.New("invalid compiler version: prerelease and nightly builds cannot be pinned")
	}
	if strings.Count(normalized, ".") != 2 {
		return errors.New("invalid compiler version: must be in format X.Y.Z (major.minor.patch)")
	}

	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// SameVersion reports whether two versions are equal once normalized
func SameVersion(v1, v2 string) bool {
	return CompareVersions(v1, v2) == 0 && semver.IsValid("v"+NormalizeVersion(v1))
}

// CompareVersions compares two versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	n1 := "v" + NormalizeVersion(v1)
	n2 := "v" + NormalizeVersion(v2)
	return semver.Compare(n1, n2)
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidatePrivateKey validates a hex-encoded secp256k1 private key (optional 0x prefix)
func ValidatePrivateKey(key string) error {
	key = strings.TrimPrefix(key, "0x")
	if len(key) != 64 {
		return errors.New("invalid private key length: must be 64 hex characters")
	}
	if !isHex(key) {
		return errors.New("invalid private key: contains non-hex characters")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
