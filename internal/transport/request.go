package transport

import (
	"bytes"
	"strconv"
)

const DefaultPort = "443"

// Header is a single request header field. Fields are serialized in the
// order they were added.
type Header struct {
	Name  string
	Value string
}

// Request is a single HTTP/1.1 request. Every request gets its own TCP and
// TLS session, there is no connection reuse.
type Request struct {
	Method  string
	Host    string
	Port    string
	Path    string
	Headers []Header
	Body    []byte
}

// NewGetRequest creates a GET request for path on host.
func NewGetRequest(host string, path string, userAgent string) *Request {
	return &Request{
		Method: "GET",
		Host:   host,
		Port:   DefaultPort,
		Path:   path,
		Headers: []Header{
			{Name: "Host", Value: host},
			{Name: "User-Agent", Value: userAgent},
			{Name: "Connection", Value: "close"},
		},
	}
}

// NewPostRequest creates a POST request with a JSON body.
func NewPostRequest(host string, path string, userAgent string, body []byte) *Request {
	return &Request{
		Method: "POST",
		Host:   host,
		Port:   DefaultPort,
		Path:   path,
		Headers: []Header{
			{Name: "Host", Value: host},
			{Name: "User-Agent", Value: userAgent},
			{Name: "Connection", Value: "close"},
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		},
		Body: body,
	}
}

// Address returns the host:port pair to dial.
func (r *Request) Address() string {
	port := r.Port
	if port == "" {
		port = DefaultPort
	}
	return r.Host + ":" + port
}

// HeaderBlock serializes the request line and header fields, including the
// terminating empty line.
func (r *Request) HeaderBlock() []byte {
	var b bytes.Buffer
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.Path)
	b.WriteString(" HTTP/1.1\r\n")
	for _, header := range r.Headers {
		b.WriteString(header.Name)
		b.WriteString(": ")
		b.WriteString(header.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.Bytes()
}
