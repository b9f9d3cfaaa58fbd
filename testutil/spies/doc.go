// Package spies provides observability test doubles that capture logs, metrics and spans
// emitted by the sqlengine package.
package spies
