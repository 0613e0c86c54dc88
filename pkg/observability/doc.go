/*
Package observability provides monitoring for skill turns.

It turns domain.LifecycleHooks into Prometheus metrics and structured log
lines, and combines several hook sets into one so they can be passed to
skillflow.WithLifecycleHooks together.
*/
package observability
