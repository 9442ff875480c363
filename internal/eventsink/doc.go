// Package eventsink implements events.EventSink for logs, memory and Redis
// streams.
package eventsink
