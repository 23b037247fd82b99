package listener

import (
	"net/url"
	"strings"
)

// route applies the built-in routing table from spec.md §4.G. l.onRequest,
// if set, has already had first refusal via handleConnection; route is only
// reached when that extension point declined (or was not configured).
func (l *Listener) route(req *Request) *Response {
	target, err := url.Parse(req.Target)
	if err != nil {
		panic(&httpError{status: 400, message: "malformed request target"})
	}
	path := strings.ToLower(target.Path)

	switch {
	case path == "/callback":
		return l.handleCallback(req)
	case path == "/finished":
		return &Response{StatusCode: 200, ContentType: "text/html; charset=UTF-8", Body: finishedHTML}
	case path == "/script.js":
		return &Response{StatusCode: 200, ContentType: "text/javascript", Body: scriptJS}
	case path == "/style.css":
		return &Response{StatusCode: 200, ContentType: "text/css", Body: styleCSS}
	case path == "/favicon.ico":
		return &Response{StatusCode: 200, ContentType: "image/x-icon", Body: nil}
	default:
		panic(&httpError{status: 404, message: "no such resource: " + req.Target})
	}
}

func (l *Listener) handleCallback(req *Request) *Response {
	if l.onCallback != nil {
		l.onCallback(CallbackEvent{URI: req.AbsoluteURI})
	}
	return &Response{
		StatusCode: 301,
		Header:     map[string]string{"Location": l.endpoint + "finished"},
	}
}
