package server

import "context"

// Handler is one RPC method's implementation: given the call's decoded
// parameters, it returns a result (marshaled back through the response
// codec) or an error (surfaced as a business failure).
//
// The original source resolved methods via runtime reflection over a
// registered struct's exported methods; this is deliberately replaced with
// an explicit name→handler map built at registration, the idiomatic Go
// shape for dynamic dispatch (a REDESIGN NOTE in the source material: "not
// runtime reflection").
type Handler func(ctx context.Context, params []any) (any, error)

// service is one registered interface: its method table, keyed by method
// name, plus the group/version qualifiers that make up its composite
// identity ("interface#group#version").
type service struct {
	name    string
	group   string
	version string
	methods map[string]Handler
}

func newService(name, group, version string) *service {
	return &service{name: name, group: group, version: version, methods: map[string]Handler{}}
}

func (s *service) register(method string, h Handler) {
	s.methods[method] = h
}

func (s *service) lookup(method string) (Handler, bool) {
	h, ok := s.methods[method]
	return h, ok
}
