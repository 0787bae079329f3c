// Package core provides the business logic for list ingestion.
//
// This package turns administrator-supplied tabular files into validated
// records and persists them. It has no transport dependencies: the HTTP
// server, the CLI and the directory watcher all drive the same [Engine].
//
// # Pipeline
//
// Each upload runs sequentially through:
//
//  1. [Decode]: CSV, XLSX or XLS bytes become a lazy [RowReader]
//  2. [Schema.CheckHeader]: missing required columns reject the file
//  3. [Schema.Apply]: rows are validated and normalized; bad rows are dropped
//  4. [PlanDistribution]: tasks are split across a [PoolSnapshot] of workers
//  5. [Writer]: one [PersistedList] per worker group, or one contact batch
//
// The [Tracker] wraps the run: the attempt is created pending, moves to
// processing once decoding starts and ends completed or failed.
//
// # Distribution
//
// With N tasks and W workers, every worker gets N/W tasks and the first
// N mod W workers get one more. Groups are contiguous slices of the input
// in order, so the concatenation of all groups is the input.
//
// # Error Handling
//
// Fatal failures are [*IngestError] values carrying an [ErrorKind]. The
// transports convert them to user-facing messages with [MapError].
package core
