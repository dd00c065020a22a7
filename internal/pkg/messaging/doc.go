// Package messaging publishes domain events to a message broker.
//
// Business code depends on Publisher only; the broker (Kafka, NATS, NSQ,
// Google Pub/Sub, or the in-process Memory recorder) is picked at startup
// through NewFromDriver.
package messaging
