// Package memory implements encrypted, bounded per-user conversation
// history. Every user owns exactly one symmetric key, created on first
// append and never implicitly regenerated; records are stored as opaque
// ciphertext plus a key identifier. Recall with a wrong or missing key
// raises AccessError instead of returning garbage. Rotating a key is an
// explicit, logged operation that deliberately invalidates all prior recall.
package memory
