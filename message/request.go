// Package message defines the logical request/response envelopes exchanged
// between client and server. These are what the codec layer serializes —
// the protocol package only knows about framed bytes, message only knows
// about RPC semantics.
package message

import "time"

// Request carries everything needed to dispatch one RPC call.
type Request struct {
	Interface string // e.g. "Arith"
	Method    string // e.g. "Add"
	Version   string
	Group     string

	ParamTypes []string
	Params     []any

	Token      string // optional authentication token
	ClientAddr string // populated by the server on receipt
	Timestamp  time.Time

	// Attributes is interceptor scratch space: auth stashes the resolved
	// principal here, the logging interceptor its start time. Only one
	// interceptor touches a given request at a time, so no locking is
	// needed — see interceptor.Chain.
	Attributes map[string]any
}

// ServiceKey is the composite identity used for registry lookup and
// dispatch: "interface#group#version".
func (r *Request) ServiceKey() string {
	return r.Interface + "#" + r.Group + "#" + r.Version
}

// ServiceMethod renders the "Interface.Method" form used to name a call in
// logs (the logging interceptor). Server dispatch keys by ServiceKey plus
// the bare method name instead.
func (r *Request) ServiceMethod() string {
	return r.Interface + "." + r.Method
}

// Attr fetches an attribute, returning ok=false if it was never set.
func (r *Request) Attr(key string) (any, bool) {
	if r.Attributes == nil {
		return nil, false
	}
	v, ok := r.Attributes[key]
	return v, ok
}

// SetAttr records an interceptor-scratch attribute, lazily allocating the
// map on first use.
func (r *Request) SetAttr(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[key] = value
}
