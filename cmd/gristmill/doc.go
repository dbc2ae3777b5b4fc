// Command gristmill manages the classification work queue: enqueue payloads,
// inspect status, cancel work, and drain the queue through a configured
// external processor.
package main
