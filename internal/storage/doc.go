// Package storage persists the set of (event, bot) pairs that have already
// been notified.
//
// Backends are selected by the scheme of the configured storage URI:
//
//   - file://   flat text file, one "bot_id event_id" pair per line,
//     loaded fully into memory at start and saved atomically
//   - sqlite:// local SQLite database, every operation round-trips
//   - mysql://  remote MySQL database, every operation round-trips
//
// The database backends have no-op Load/Save beyond schema setup: each
// Has/Add hits the backend immediately, so there is nothing to flush.
package storage
