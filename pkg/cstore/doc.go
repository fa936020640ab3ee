// Package cstore is a client for a remote chain key/value store reached over
// HTTP (/get, /set, /get_status). Values are JSON documents. The store has no
// delete endpoint, so Delete writes a JSON null which readers treat as absent.
//
// Store adapts a Client to the byte-oriented storage contract used by
// datatable.
package cstore
