// Package discovery finds API module files in a directory and loads them.
//
// Files are matched with a doublestar pattern and visited in lexical order,
// which is the order duplicate names are resolved in. Each file goes to the
// Loader registered for its extension. A file that exports no module, or a
// descriptor without a name or initialize function, is skipped quietly; a
// file that fails to load aborts discovery under PolicyFail and is logged
// and skipped under PolicySkip.
package discovery
