// Package frontend implements Corvid's UDP and TCP listeners: the wire
// surface that accepts client queries and hands them to a resolver.
//
// Concurrency model is deliberately different from a high-throughput fixed
// worker pool: UDP spawns one goroutine per datagram (no drop-when-busy),
// and TCP pipelines queries on a connection truly concurrently, writing
// responses back in the order the queries arrived.
package frontend

import (
	"context"
	"log/slog"
	"time"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/metrics"
	"github.com/jroosing/corvid/internal/resolver"
)

// Resolver is the interface a frontend dispatches parsed queries to.
type Resolver interface {
	Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (resolver.Result, error)
}

// DefaultQueryTimeout bounds how long a single query may take before the
// frontend gives up and answers SERVFAIL itself.
const DefaultQueryTimeout = 4 * time.Second

// Handler turns raw request bytes into a wire-format response, handling
// parse failures and resolution timeouts the way a client expects: always
// a reply, never a hang.
type Handler struct {
	Resolver Resolver
	Logger   *slog.Logger
	Timeout  time.Duration

	// Metrics receives one IncQuery per parsed request with RD set. Nil is
	// fine.
	Metrics *metrics.Registry
}

// HandleResult is what Handle returns: a response to write back (if any)
// and where it came from, for logging.
type HandleResult struct {
	ResponseBytes []byte
	Source        string
}

// Handle parses reqBytes, resolves it with a timeout, and returns the
// response to send. A malformed request that cannot even be parsed enough
// to build a FORMERR reply (e.g. a truncated header) returns a nil
// ResponseBytes — the frontend then has nothing to send back.
func (h *Handler) Handle(ctx context.Context, transport, peer string, reqBytes []byte) HandleResult {
	parsed, err := dns.ParseRequestBounded(reqBytes)
	if err != nil {
		return h.handleParseError(reqBytes)
	}
	if h.Metrics != nil && parsed.Header.Flags&dns.RDFlag != 0 {
		h.Metrics.IncQuery(transport)
	}

	result := h.resolveWithTimeout(ctx, parsed, reqBytes)
	h.logRequest(ctx, transport, peer, parsed, len(reqBytes), result.Source)
	return result
}

func (h *Handler) handleParseError(reqBytes []byte) HandleResult {
	if h.Logger != nil {
		h.Logger.Debug("malformed dns request", "reason", "decode-error", "bytes", len(reqBytes))
	}
	resp := tryBuildErrorFromRaw(reqBytes, uint16(dns.RCodeFormErr))
	if resp == nil {
		return HandleResult{Source: "parse-error"}
	}
	return HandleResult{ResponseBytes: resp, Source: "formerr"}
}

func (h *Handler) resolveWithTimeout(ctx context.Context, parsed dns.Packet, reqBytes []byte) HandleResult {
	type outcome struct {
		res resolver.Result
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		res, err := h.Resolver.Resolve(ctx, parsed, reqBytes)
		resCh <- outcome{res: res, err: err}
	}()

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return h.errorResult(parsed, "shutdown", dns.RCodeServFail)
	case <-timer.C:
		return h.errorResult(parsed, "timeout", dns.RCodeServFail)
	case o := <-resCh:
		if o.err != nil {
			return h.errorResult(parsed, "servfail", dns.RCodeServFail)
		}
		return HandleResult{ResponseBytes: o.res.ResponseBytes, Source: o.res.Source}
	}
}

func (h *Handler) errorResult(parsed dns.Packet, source string, rcode dns.RCode) HandleResult {
	resp := dns.BuildErrorResponse(parsed, uint16(rcode))
	b, err := resp.Marshal()
	if err != nil {
		return HandleResult{Source: source}
	}
	return HandleResult{ResponseBytes: b, Source: source}
}

func (h *Handler) logRequest(ctx context.Context, transport, peer string, parsed dns.Packet, reqLen int, source string) {
	if h.Logger == nil || !h.Logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	qname, qtype := "<no-question>", -1
	if len(parsed.Questions) > 0 {
		qname = parsed.Questions[0].Name.String()
		qtype = int(parsed.Questions[0].Type)
	}
	h.Logger.DebugContext(ctx, "dns request",
		"transport", transport,
		"peer", peer,
		"id", int(parsed.Header.ID),
		"qname", qname,
		"qtype", qtype,
		"bytes", reqLen,
		"source", source,
	)
}

// tryBuildErrorFromRaw attempts to build a FORMERR response from a request
// too malformed for ParseRequestBounded, using whatever header and question
// bytes can still be salvaged. Returns nil if even the header can't be read.
func tryBuildErrorFromRaw(reqBytes []byte, rcode uint16) []byte {
	off := 0
	hdr, err := dns.ParseHeader(reqBytes, &off)
	if err != nil {
		return nil
	}
	req := dns.Packet{Header: hdr}
	if hdr.QDCount > 0 {
		if q, err := dns.ParseQuestion(reqBytes, &off); err == nil {
			req.Questions = []dns.Question{q}
			req.Header.QDCount = 1
		}
	}
	resp := dns.BuildErrorResponse(req, rcode)
	b, err := resp.Marshal()
	if err != nil {
		return nil
	}
	return b
}
