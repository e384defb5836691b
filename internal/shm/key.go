package shm

// scope is the fixed prefix of every shared-memory mapping key; the
// configured port identifier is appended to it. Only local, same-host
// client/server pairs are supported.
const scope = "LOCAL"

// Key returns the shared-memory object name for a given port identifier.
func Key(port string) string { return scope + port }
