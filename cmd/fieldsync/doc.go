// Package main hosts the fieldsync CLI.
//
// `fieldsync daemon` runs the offline queue in the foreground. The other
// commands talk to it over the IPC socket; read-only queue commands fall back
// to opening the queue store directly when no daemon is listening.
package main
