// Package vt implements the terminal emulator state machine used by the
// harness.
//
// A Grid is the in-memory model of a fixed-size terminal screen: rows of
// cells, the cursor, the current style and the mode flags that affect how
// text is placed. A Parser consumes the raw byte stream a program writes
// to its terminal and applies it to exactly one Grid.
//
// # Architecture
//
//   - Grid: fixed rows × cols of Cell with a primary and an alternate
//     buffer. No scrollback; scrolling discards the top row.
//   - Parser: byte-at-a-time escape sequence state machine. All
//     accumulation state lives in the Parser, so input may be split
//     anywhere between Feed calls.
//   - Tables (table.go): the recognised control functions, keyed by
//     opcode. Anything not in a table is consumed and dropped.
//
// # Usage
//
//	g := vt.NewGrid(24, 80)
//	p := vt.NewParser(g)
//	p.Feed([]byte("\x1b[1mhello\x1b[0m"))
//	row, col := g.Cursor()
//
// # Thread Safety
//
// Grid and Parser are not safe for concurrent use. A Grid is owned by one
// Parser and callers serialise Feed against reads of the Grid.
package vt
