/*
Package rabbitmq delivers dispatch records to RabbitMQ. The Sink publishes
each record to a topic exchange with a "<kind>.<message type>" routing key;
the connection-backed constructor maintains the channel with auto-reconnect.
*/
package rabbitmq
