package cacheinfra

import "strings"

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// NamespacePrefix returns the prefix shared by every key of namespace.
func NamespacePrefix(namespace string) string {
	return namespace + KeySeparator
}

func inNamespace(key, namespace string) bool {
	return strings.HasPrefix(key, NamespacePrefix(namespace))
}
