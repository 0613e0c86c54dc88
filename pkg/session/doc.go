/*
Package session orchestrates session persistence around skill turns.

The skill core is stateless between turns and never serializes access to a
session. Channel adapters use the Manager to load a session, run one turn
while holding that session's lock, and write the resulting attributes back.
Locks are local (ref-counted mutexes) and optionally distributed across
replicas through a ports.DistributedLocker.
*/
package session
