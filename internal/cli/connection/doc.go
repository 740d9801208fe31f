// Package connection opens the storage backend and session store used by
// boxstore-cli commands.
package connection
