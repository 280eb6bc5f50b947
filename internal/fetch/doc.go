// Package fetch downloads remote images at most once per URL.
//
// A Coordinator merges concurrent requests for the same URL into one
// transfer, stores the bytes through imgcache.Store and records the result in
// the shared imgcache.Cache before any waiter is notified.
package fetch
