// Package opctx extracts fields from the operation context string carried by
// Kubernetes trace events.
//
// An operation context is a flat "Key: Value, Key: Value" string, for example:
//
//	Name: web-7d4b9c-x2x9z, UID: 2b5f..., Reason: Pulling, Owners: [web-7d4b9c]
//
// Values are returned verbatim. Nothing in this package returns an error: a
// missing or malformed field yields an empty string.
package opctx

import (
	"regexp"
	"strings"
)

const (
	partSeparator = ", "
	keySeparator  = ": "
)

// Well-known keys of the operation context
const (
	KeyName    = "Name"
	KeyUID     = "UID"
	KeyReason  = "Reason"
	KeyType    = "Type"
	KeyMessage = "Message"
	KeyOwners  = "Owners"
)

var firstOwnerPattern = regexp.MustCompile(`^\[\s*([^,\]]*?)\s*(,|\])`)

// Field returns the value of key in ctx, or "" when the key is absent.
// The match is anchored on "<key>: " at the start of a part, so "Name" never
// matches "NameSpace".
func Field(ctx, key string) string {
	_, value, ok := find(ctx, key)
	if !ok {
		return ""
	}
	return value
}

// Lookup is like Field but reports whether the key was present
func Lookup(ctx, key string) (string, bool) {
	_, value, ok := find(ctx, key)
	return value, ok
}

// FirstOwner returns the first element of the bracketed Owners list, trimmed,
// or "" when there is no owner.
func FirstOwner(ctx string) string {
	offset, _, ok := find(ctx, KeyOwners)
	if !ok {
		return ""
	}
	// The list itself contains the part separator, so match against the rest
	// of the context rather than the single part.
	m := firstOwnerPattern.FindStringSubmatch(ctx[offset:])
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// find locates key and returns the byte offset of its value in ctx and the
// value up to the next separator.
func find(ctx, key string) (int, string, bool) {
	prefix := key + keySeparator
	offset := 0
	for {
		end := strings.Index(ctx[offset:], partSeparator)
		part := ctx[offset:]
		if end >= 0 {
			part = ctx[offset : offset+end]
		}
		if strings.HasPrefix(part, prefix) {
			return offset + len(prefix), part[len(prefix):], true
		}
		if end < 0 {
			return 0, "", false
		}
		offset += end + len(partSeparator)
	}
}
