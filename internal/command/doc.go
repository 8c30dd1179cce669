// Package command implements the asynchronous command pipeline: admission
// and acknowledgement, the FIFO command queue with resource-aware
// scheduling, and the execution engine that drives the actuator.
//
// A command is acknowledged as QUEUED the moment it is accepted. Workers
// later reserve its slots and drives through the library registry
// (all-or-nothing), run the physical operation under a per-action timeout,
// and record a terminal SUCCEEDED or FAILED outcome that callers retrieve
// by querying the command id.
package command
