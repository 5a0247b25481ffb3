// Package taskfile reads, validates, and writes task list files.
//
// A task list file is a JSON array of sections:
//
//	[
//	  {
//	    "name": "Home",
//	    "tasks": [
//	      { "text": "Buy milk", "completed": false }
//	    ]
//	  }
//	]
//
// There is no version field and no metadata. Unknown fields are accepted on
// read and dropped on write.
//
// # Validation
//
// Parsed content is checked against an embedded JSON Schema (draft 2020-12)
// describing the layout above. A schema file on disk can replace the
// embedded one; when it is missing or does not compile the embedded schema is
// used and a warning is recorded.
//
// # File Format
//
// When writing task files, the package uses:
//   - 2-space indentation
//   - Trailing newline
//   - An empty "tasks" array for sections without tasks (never null)
//   - Atomic replacement of the destination file
package taskfile
