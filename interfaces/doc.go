// Package interfaces defines the contracts shared between the record
// lifecycle engine and its collaborators: the transport abstraction used for
// every request/response exchange, and the error taxonomy all operations
// surface their failures through.
package interfaces
