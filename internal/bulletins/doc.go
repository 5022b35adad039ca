// Package bulletins mirrors FinCERT bulletins into one directory each.
//
// A bulletin directory is named after its publication minute and its human
// readable identifier (see DirName). The set of directories under the
// download root is the only record of what has been fetched: Sync walks
// one page of the listing, newest first, and stops at the first bulletin
// that is already on disk when it starts from offset 0. With a non-zero
// offset an existing directory is skipped instead, so older history can be
// rescanned for gaps.
//
// A completion marker is written into a directory after all of its files.
// A directory without it was interrupted and is downloaded again in place.
package bulletins
