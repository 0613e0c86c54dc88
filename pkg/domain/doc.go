/*
Package domain contains the core types of the skillflow dialog engine.

It defines the turn input (Request and Session), the turn output (Reply and
Directive), the dialog graph (State, IntentHandler, Next) and the error
taxonomy shared by every other package. It has no I/O and no dependencies
beyond the standard library, following Hexagonal Architecture principles.

# Key Entities

  - Request: the normalized turn input produced by a channel adapter.
  - Reply: the mutable accumulator of one turn's output (speech, directives,
    session attributes, termination).
  - State: a named node holding an intent-to-handler table.
  - Outcome: the result of one transition ({To, Reply}); a nil To ends the
    conversation.
*/
package domain
