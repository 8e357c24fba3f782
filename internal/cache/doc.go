// Package cache defines the content-addressed disk store for rendered math.
// A request's (expression, mode) pair is reduced to a Key by DeriveKey, and
// each rendered variant lives at CachePath/<key>.<format>. Writes go through a
// temp file in the same directory followed by an atomic rename, so readers
// never observe a partial file even when two misses for the same key race.
// Entries are write-once: nothing in this package updates or deletes them.
package cache
