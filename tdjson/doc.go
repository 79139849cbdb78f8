// Package tdjson is the slice of the engine's JSON wire model the runtime needs
// to route traffic: a header decoder, a small set of event kinds, the
// authorization state sum type and the handshake requests.
//
// Every object on the wire carries an "@type" discriminator. Objects produced
// by the engine for a particular session also carry "@client_id", and replies
// to a request echo the request's "@extra" value, which the runtime uses as a
// correlation token.
//
// Anything the runtime does not interpret (ordinary updates, replies with
// payloads) is kept as raw JSON so applications can decode it into their own
// types with Update.Decode or Object.Decode.
package tdjson
