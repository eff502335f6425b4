// Package processing is the boundary to the external media storage and
// processing service.
//
// Providers (S3, MinIO, in-memory) accept a completed upload and report a
// Handoff. Guard bounds every call with a timeout and a circuit breaker and
// classifies failures as Transient or Terminal. Asynchronous results arrive as
// Completion messages, either through a signed webhook verified by Signer or
// from an AMQP queue read by Consumer.
package processing
