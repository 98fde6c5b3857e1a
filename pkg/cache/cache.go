// Package cache stores generated fills so repeated renders of the same
// source, format and offset skip the remote call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache is a byte store keyed by string.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Hash returns the 16-char hex xxhash of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Key builds "prefix:hash(parts...)".
func Key(prefix string, parts ...any) string {
	d := xxhash.New()
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			_, _ = d.Write(v)
		case string:
			_, _ = d.WriteString(v)
		default:
			b, _ := json.Marshal(v)
			_, _ = d.Write(b)
		}
		// separator so ("ab","c") and ("a","bc") differ
		_, _ = d.Write([]byte{0})
	}
	return prefix + ":" + strconv.FormatUint(d.Sum64(), 16)
}
