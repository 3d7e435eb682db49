package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cchevrot/backtest/internal/domain"
)

// ComputeConfigID computes a deterministic config_id using SHA256.
// Formula: SHA256(canonical_key)
// Returns hex-encoded hash (64 characters).
func ComputeConfigID(canonicalKey string) string {
	hash := sha256.Sum256([]byte(canonicalKey))
	return hex.EncodeToString(hash[:])
}

// ConfigID canonicalizes params and hashes the key.
func ConfigID(p domain.Params) (id, key string, err error) {
	key, err = domain.CanonicalKey(p)
	if err != nil {
		return "", "", err
	}
	return ComputeConfigID(key), key, nil
}

// ComputeDataSetID identifies an ordered list of day names.
// Formula: SHA256(day_1|day_2|...|day_n)
func ComputeDataSetID(days []string) string {
	data := fmt.Sprintf("%d|%s", len(days), strings.Join(days, "|"))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
