// Package store keeps relbridge's state in a single SQLite file.
//
// Two tables:
//   - declarations: imported catalog function overloads, unique by
//     namespace, name and signature, with the declaration body as JSON.
//     Re-importing a namespace replaces its rows.
//   - roundtrips: one row per recorded round-trip check, holding the plan
//     fingerprint, the structural diff and the conversion error, if any.
//
// Every row carries an autoincrement seq and every query orders by it, so
// catalogs reload in the order they were imported and history lists oldest
// first.
//
// Open applies WAL journaling, NORMAL sync, a 5s busy timeout and foreign
// keys, then upgrades older files through the migrations in store.go,
// tracked in PRAGMA user_version.
package store
