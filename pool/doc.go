// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable read buffers for connection loops. Each connection borrows one buffer
// for its lifetime and returns it on teardown.
package pool
