// Package telemetry distributes command lifecycle events to SSE
// subscribers. Submitters that prefer pushing over polling subscribe to the
// events endpoint and watch for the terminal event of their command id.
package telemetry
