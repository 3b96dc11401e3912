package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Id prefixes.
const (
	TerminalPrefix = "trm_"
	ObserverPrefix = "obs_"
	LoginPrefix    = "ses_"
)

// GenerateTerminalID generates a unique terminal connection ID using ULID.
// Format: "trm_" + ulid().
func GenerateTerminalID() string {
	return TerminalPrefix + generateULID()
}

// GenerateObserverID generates a unique observer connection ID using ULID.
// Format: "obs_" + ulid().
func GenerateObserverID() string {
	return ObserverPrefix + generateULID()
}

// GenerateLoginID generates a unique login session ID using ULID.
// Format: "ses_" + ulid().
func GenerateLoginID() string {
	return LoginPrefix + generateULID()
}

// GenerateSecret returns n random bytes, hex encoded. Used for login tokens
// and session keys, which must not be guessable the way ULIDs are.
func GenerateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// generateULID generates a ULID string.
func generateULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy)
	return id.String()
}
