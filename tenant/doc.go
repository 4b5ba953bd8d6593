// Package tenant maps raw tenant identifiers to collision-free key prefixes
// and builds every key the data-access layer reads or writes.
//
// # Encoding
//
// [Encode] lower-cases the identifier, passes ASCII letters and digits
// through, and replaces every other code point with a delimited hex token.
// A byte that is not valid UTF-8 gets its own "x" token:
//
//	Encode("kim.d63b7658") == "kim_2e_d63b7658/"
//	Encode("kim_abc")      == "kim_5f_abc/"
//	Encode("kim\xff")      == "kim_xff_/"
//	Encode("")             == "/"
//
// The underscore is escaped like any other special character and the
// trailing "/" is never produced by the escape scheme, so distinct inputs
// always yield distinct prefixes. [LegacyEncode] reproduces the older
// collision-prone scheme and exists only to find data written under it.
//
// # Key Layout
//
//	{prefix}{id}            trip document
//	{prefix}{id}/_summary   derived summary
//	{prefix}{id}/_comments  comments
//	{prefix}_trip-index     trip index
//	{prefix}_trip-deletes   pending deletions (TTL)
//	{prefix}_comment-index  trips with active comments
//
// Keys that begin with "_" or contain a "/_" segment are system keys and are
// never reported as trips.
package tenant
