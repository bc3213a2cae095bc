package message

// Status codes mirrored on the wire in Response.Status.
const (
	StatusOK              = 200
	StatusUnauthenticated = 401
	StatusRateLimited     = 429
	StatusFailure         = 500
)

// Response carries the result of one RPC call.
type Response struct {
	Status  int
	Message string
	Payload any // absent (nil) on failure

	// Extensions carries out-of-band diagnostics: the security
	// interceptor's "code", the rate-limit interceptor's "limited_by"
	// level, and similar — anything that isn't the business payload but the
	// caller still needs. A RateLimited response carries no retry-after
	// value.
	Extensions map[string]string
}

// Ext fetches an extension value, returning "" if unset.
func (r *Response) Ext(key string) string {
	if r.Extensions == nil {
		return ""
	}
	return r.Extensions[key]
}

// SetExt records an extension value, lazily allocating the map.
func (r *Response) SetExt(key, value string) {
	if r.Extensions == nil {
		r.Extensions = make(map[string]string)
	}
	r.Extensions[key] = value
}

// Success builds a 200 response carrying payload.
func Success(payload any) *Response {
	return &Response{Status: StatusOK, Payload: payload}
}

// Failure builds a 500 response wrapping a business error's message.
func Failure(message string) *Response {
	return &Response{Status: StatusFailure, Message: message}
}

// IsSuccess reports whether the response represents a completed call.
func (r *Response) IsSuccess() bool {
	return r.Status == StatusOK
}
