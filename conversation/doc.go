// Package conversation implements the per-connection question and answer
// protocol.
//
// A Session reads one question payload from a Conn, persists the human
// message, streams the answer as start, stream and end events, and persists
// the assistant message. Malformed payloads are answered with an error event
// and the session keeps waiting for a valid question. A client disconnect
// cancels any generation in flight and nothing further is sent or stored.
//
// Wire format (JSON, one object per frame):
//
//	client: {"captcha": "...", "localContext": "...", "messages": [{"messageId", "previousMessageId", "type", "content", "sources", "time"}]}
//	server: {"sender": "bot", "messageId", "previousMessageId", "time", "type": "start"}
//	        {"sender": "bot", "message", "type": "stream"}
//	        {"sender": "bot", "id", "previousMessageId", "message", "sources", "type": "end"}
//	        {"sender": "bot", "message", "type": "error"}
package conversation
