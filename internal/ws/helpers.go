package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

const frameScopeTimeout = 10 * time.Second

// requestScope bounds the store work triggered by a single inbound frame.
func requestScope() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), frameScopeTimeout)
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
