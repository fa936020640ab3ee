// Package datatable stores typed rows in a remote key/value store.
//
// Table[T] maps rows to JSON payloads under "<table>:<id>" keys and delegates
// all I/O to a StorageClient. SignedTable[T] wraps a Table and signs every
// payload with an RSA private key on save; on load the signature is verified
// against the public key before the row is returned, so a row whose payload
// or signature was altered in storage surfaces as errs.ErrSignatureMismatch
// rather than as data.
//
// Get returns (nil, nil) when no row exists. Transport failures are
// errs.KindStorage with code errs.CodeIO.
package datatable
