package account

import (
	"crypto/md5" //nolint:gosec // The vendor API requires an MD5 digest.
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"
)

// HashPassword returns the MD5 hex digest the cloud expects. A value that
// already looks like a digest (32 hex characters) is returned unchanged,
// so a config may hold either form.
func HashPassword(raw string) string {
	if looksLikeMD5(raw) {
		return raw
	}
	sum := md5.Sum([]byte(raw)) //nolint:gosec // Vendor protocol.
	return hex.EncodeToString(sum[:])
}

func looksLikeMD5(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NewInstallID generates an app install id in the vendor's format,
// uuid_<unix ms>_<6 digits>.
func NewInstallID(now time.Time) string {
	return fmt.Sprintf("uuid_%d_%06d", now.UnixMilli(), rand.IntN(1_000_000)) //nolint:gosec // Not a secret.
}
