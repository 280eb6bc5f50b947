// Package imgcache holds downloaded comment images.
//
// Cache is the in-memory URL to local path mapping shared by every document in
// the process. Entries never expire: a URL is assumed to name the same image for
// the whole editing session.
//
// Store owns the on-disk side: file naming, atomic writes and the msgpack
// sidecars that let the CLI list and clean downloads. Store never restores a
// Cache across restarts.
package imgcache
