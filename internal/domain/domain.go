// Package domain holds the core types shared across layers.
package domain

// KeyPrefix namespaces every key the service writes to the document store.
const KeyPrefix = "callsight:"
