// Package sqlite stores painting run history in SQLite.
//
// A run is one pass of the batch painter over a dataset; every frame it
// touches gets a row with its painting statistics or the error that stopped
// it. The schema is managed by golang-migrate from the embedded migrations
// directory.
package sqlite
