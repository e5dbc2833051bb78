// Package task manages background job queuing and processing.
// Asynchronous document submissions are wrapped in a DocumentTask, placed on
// a bounded TaskQueue and executed by a fixed-size WorkerPool, so slow
// analysis never blocks HTTP request handling.
package task
