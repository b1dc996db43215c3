// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded worker pool used by the server to run one task per accepted
// connection. Pending tasks wait in FIFO order; the pool never grows past its
// configured worker count.
package concurrency
