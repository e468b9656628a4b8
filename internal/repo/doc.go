// Package repo holds the storage implementations: backend session history
// (Redis or in-process cache) and system-context presets (Redis or SQLite).
package repo
