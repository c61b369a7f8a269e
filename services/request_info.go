package services

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/answerhive/answerhive_api/shared"
)

// RequestInfo is the inbound-request descriptor the throttle and blocklist
// engines evaluate. It is deliberately framework-free so the engines can be
// driven directly in tests; the fiber middleware builds one per request.
type RequestInfo struct {
	Path   string
	Method string
	IP     string
	Query  map[string]string

	body       []byte
	bodyJSON   map[string]interface{}
	bodyParsed bool
}

func NewRequestInfo(c *fiber.Ctx) *RequestInfo {
	query := make(map[string]string)
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		query[string(k)] = string(v)
	})

	return &RequestInfo{
		Path:   c.Path(),
		Method: c.Method(),
		IP:     ClientIP(c),
		Query:  query,
		body:   c.Body(),
	}
}

// BodyJSON lazily parses the request body as a JSON object. Invalid or
// non-object bodies yield nil; extraction helpers treat that as "absent".
func (r *RequestInfo) BodyJSON() map[string]interface{} {
	if !r.bodyParsed {
		r.bodyParsed = true
		if len(r.body) > 0 {
			var parsed map[string]interface{}
			if err := shared.JSONUnmarshal(r.body, &parsed); err == nil {
				r.bodyJSON = parsed
			}
		}
	}
	return r.bodyJSON
}

func (r *RequestInfo) bodyString(key string) string {
	body := r.BodyJSON()
	if body == nil {
		return ""
	}
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

// VisitorID returns the device fingerprint submitted with the request body,
// or "" when none can be extracted.
func (r *RequestInfo) VisitorID() string {
	return strings.TrimSpace(r.bodyString("visitor_id"))
}

// Email returns the normalized (lowercased) email from the request body.
func (r *RequestInfo) Email() string {
	return strings.ToLower(strings.TrimSpace(r.bodyString("email")))
}

// ParamValues flattens query parameters and top-level body values into the
// list the payload-sanity predicate scans.
func (r *RequestInfo) ParamValues() []string {
	values := make([]string, 0, len(r.Query))
	for _, v := range r.Query {
		values = append(values, v)
	}
	for _, v := range r.BodyJSON() {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// ClientIP resolves the originating address, preferring proxy headers.
func ClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if ip != "" {
				return ip
			}
		}
	}

	realIP := c.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	cfIP := c.Get("CF-Connecting-IP")
	if cfIP != "" {
		return cfIP
	}

	ip, _, err := net.SplitHostPort(c.Context().RemoteAddr().String())
	if err != nil {
		return c.Context().RemoteAddr().String()
	}

	return ip
}
