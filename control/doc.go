// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime counters shared by the server, the connection state machine and the
// frame dispatcher. Counters are plain named int64 values read as a snapshot,
// suitable for periodic logging or export.
package control
