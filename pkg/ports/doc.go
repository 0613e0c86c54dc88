/*
Package ports defines the driven ports (interfaces) of the skillflow engine.

These interfaces decouple the dialog core from external implementations,
allowing skills to run against various session stores and template sources.

# Key Interfaces

  - SessionStore: persists session attributes between turns (e.g., Memory, File, Redis).
  - ResponseSource: resolves response template keys (e.g., Memory map, Loam repository).
  - DistributedLocker: serializes turns of one session across replicas.
*/
package ports
