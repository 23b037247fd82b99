package listener

// httpError is the internal control-flow type that connection handling
// recovers from, per spec.md §4.G's "any exception during request handling
// is caught and converted to an HTTP error response whose status equals
// the exception's HTTP code when available (else 500)". Routing code
// panics with an *httpError to short-circuit to an error response; the
// per-connection handler is the only place that recovers it.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func httpErrorStatus(v any) (int, string) {
	if he, ok := v.(*httpError); ok {
		return he.status, he.message
	}
	if err, ok := v.(error); ok {
		return 500, err.Error()
	}
	return 500, "internal error"
}
