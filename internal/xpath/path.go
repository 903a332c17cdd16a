package xpath

import (
	"path"
	"strings"
)

// shardWidth is the number of key characters used as parent directory.
const shardWidth = 2

// Valid reports whether key can be used as a flat storage key.
// Keys are generated identifiers, anything looking like a path is refused.
func Valid(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && !strings.ContainsRune(key, 0)
}

// Shard returns the sharded path of the given key: `ab/abcdef'.
// It spreads payloads over several directories to keep them small.
func Shard(key string) string {
	if len(key) <= shardWidth {
		return path.Join("_", key)
	}
	return path.Join(strings.ToLower(key[:shardWidth]), key)
}
