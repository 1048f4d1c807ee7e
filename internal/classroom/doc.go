// Package classroom owns the live session state of a single classroom: the current poll and its
// history, the student roster, the chat log and the chat permission flag.
//
// All mutations go through a Session, which applies each operation (state change plus the
// resulting fanout) as one critical section. Delivery to connections is delegated to a Fanout;
// durable side effects are delegated to an optional Journal. Neither may block.
package classroom
