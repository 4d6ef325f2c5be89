package httpexec

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

// ErrorCode classifies transport failures. The numbers follow libcurl's
// error codes so logs stay comparable with curl output.
type ErrorCode int

const (
	CodeOK                ErrorCode = 0
	CodeFailed            ErrorCode = 1
	CodeResolveHost       ErrorCode = 6
	CodeConnect           ErrorCode = 7
	CodeTimeout           ErrorCode = 28
	CodeTLSHandshake      ErrorCode = 35
	CodeTooManyRedirects  ErrorCode = 47
	CodeCertificateVerify ErrorCode = 60
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeResolveHost:
		return "could not resolve host"
	case CodeConnect:
		return "could not connect"
	case CodeTimeout:
		return "timed out"
	case CodeTLSHandshake:
		return "TLS handshake failed"
	case CodeTooManyRedirects:
		return "too many redirects"
	case CodeCertificateVerify:
		return "certificate verification failed"
	default:
		return "request failed"
	}
}

func classify(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}

	var (
		dnsErr      *net.DNSError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		recordErr   tls.RecordHeaderError
		opErr       *net.OpError
		netErr      net.Error
	)

	switch {
	case errors.Is(err, errTooManyRedirects):
		return CodeTooManyRedirects
	case errors.As(err, &dnsErr):
		return CodeResolveHost
	case errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr):
		return CodeCertificateVerify
	case errors.As(err, &recordErr):
		return CodeTLSHandshake
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return CodeConnect
	default:
		return CodeFailed
	}
}
