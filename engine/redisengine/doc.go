// Package redisengine implements engine.Engine as a bridge to an engine process
// reachable through Redis.
//
// Layout (all keys share a configurable prefix):
//
//	<prefix>seq      : INCR counter allocating session ids
//	<prefix>requests : list of {"client_id":N,"request":{...}} envelopes, RPUSH by the runtime
//	<prefix>events   : list of raw engine events, RPUSH by the engine process
//
// The engine process pops requests, feeds them to the real engine and pushes
// every event it produces. Peer implements that side and is what tests and
// small bridge programs use.
//
// Receive relies on BLPOP, whose timeout has one-second resolution; shorter
// receive timeouts are rounded up, which bounds how quickly a stop request is
// observed.
package redisengine
