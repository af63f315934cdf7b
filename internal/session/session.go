// Package session provides the per-process session identifier used to tag
// outgoing requests so push events can name their originating client.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

var id = generate()

// ID returns this process's session identifier. It is stable for the
// lifetime of the process.
func ID() string {
	return id
}

func generate() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d-0", time.Now().UnixMilli())
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
