// Package relay provides saga orchestration for multi-step business
// transactions: an ordered sequence of local operations, each paired with a
// compensating counter-operation, that can be interrupted, persisted, and
// resumed from its cursor.
//
// Overview
//
//  1. Define your saga data container:
//     - Embed BaseSagaData in a struct carrying your business fields.
//     - Have steps record business "done" flags on the container so a
//       resumed execution can skip redundant side effects.
//  2. Define your steps:
//     - Implement SagaStep directly, or use NewStep to package an
//       execute/compensate function pair.
//  3. Build an Orchestrator:
//     - Use NewOrchestrator and chain AddStep calls; the step list is
//       immutable after the first execution.
//  4. Run your saga:
//     - Call Execute with a context and your container; inspect the
//       returned SagaResult.
//     - Persist the returned container with a SagaPersistence
//       implementation (InMemoryStore, FileStore, or RedisStore) and feed
//       a SagaRecorder (MetricsCollector, PrometheusRecorder) from the
//       outcome, or let a SagaRunner do both.
//
// On a step failure the orchestrator compensates previously executed steps
// in reverse order, best-effort, and reports the original failure plus any
// compensation failures on the SagaResult.
package relay
