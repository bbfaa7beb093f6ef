/*
Package dispatcher provides an in-process command/query mediator. It routes
each message to exactly one registered handler, wraps commands in an optional
transactional boundary, caches successful query results, and tags every
dispatch with a correlation id and its measured latency, returning a uniform
result envelope on every path.
*/
package dispatcher
