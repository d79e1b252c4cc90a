package engram

import "context"

// Close flushes and closes the append log and releases the handle. Any
// in-flight background snapshot finishes first. Operations on a closed DB
// return ErrClosed; Close itself is idempotent.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	if db.closed.Swap(true) {
		return nil
	}

	// Same acquisition order as the snapshot path. Taking both locks
	// drains writers and snapshots before the log goes away under them.
	db.snapshotMu.Lock()
	db.mu.Lock()
	err := db.log.Close()
	db.mu.Unlock()
	db.snapshotMu.Unlock()

	db.logger.LogClose(context.Background(), err)
	return err
}
