package listener

// Request is the parsed form of an inbound connection's header block, per
// spec.md §4.G. The body is never inspected; Content-Length bytes are
// drained and discarded before Request is handed to the routing layer.
type Request struct {
	// Method is the uppercased first token of the request line. Only GET
	// and POST reach routing; anything else is rejected as 405 before a
	// Request is constructed.
	Method string

	// Target is the raw second token of the request line, exactly as sent
	// by the client (e.g. "/callback?test123").
	Target string

	// AbsoluteURI is Target resolved against http://<loopback>:<port>/.
	AbsoluteURI string

	// Header holds header names (as sent, not case-normalized beyond
	// trimming) to values; duplicate headers are comma-joined and folded
	// continuation lines are already unfolded.
	Header map[string]string
}

// Response is what a handler (built-in or host-supplied) produces for a
// Request.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	// Header holds additional response headers, e.g. Location on a redirect.
	Header map[string]string
}

// CallbackEvent is raised exactly once per /callback request, carrying the
// absolute URI the redirect arrived with. The host is responsible for
// matching its state parameter against an in-flight grant; a listener may
// legitimately raise this more than once (stale or replayed requests).
type CallbackEvent struct {
	URI string
}

// CallbackHandler observes /callback requests. It must not block for long;
// per spec.md §5 suspension point (e), the core does not wrap it, so a slow
// handler only stalls the one connection that triggered it.
type CallbackHandler func(CallbackEvent)

// RequestHandler is the extension point described in spec.md §4.G: it runs
// before built-in routing and may populate a Response for any path. If it
// returns nil, the built-in routing table handles the request.
type RequestHandler func(*Request) *Response
