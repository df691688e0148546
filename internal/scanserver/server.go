// Package scanserver implements the TCP scan-only wire protocol from
// spec.md §6: a request/response loop, multiple cycles per connection, one
// goroutine per accepted connection (the Go analogue of the original's
// "dispatches each accepted connection onto a worker thread"). The `server`
// command hands it a Manager opened with hashdb.OpenReadOnly, so its Scan
// calls test the bloom filters lock-free against the memory-mapped reader
// (spec.md §5) and only take internal/hashdb.Manager's coarse lock for the
// primary-store lookup that follows a bloom hit; this package never needs
// a lock of its own.
package scanserver

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/valyala/bytebufferpool"
	"k8s.io/klog/v2"
)

// requestType values from spec.md §6.
const (
	RequestMD5    uint32 = 1
	RequestSHA1   uint32 = 2
	RequestSHA256 uint32 = 3
)

func widthForRequestType(t uint32) (int, error) {
	switch t {
	case RequestMD5:
		return 16, nil
	case RequestSHA1:
		return 20, nil
	case RequestSHA256:
		return 32, nil
	default:
		return 0, fmt.Errorf("scanserver: unknown request_type %d", t)
	}
}

// nativeEndian is spec.md §6's "network byte order not required (host-native
// is used; deploy locally or specify endianness match)".
var nativeEndian = binary.NativeEndian

// Server answers scan requests over TCP against a single open database.
// It never mutates the database: find/scan are the only operations it
// calls.
type Server struct {
	mgr *hashdb.Manager
	ln  net.Listener
}

// New wraps mgr, an already-open database, for read-only TCP scan service.
func New(mgr *hashdb.Manager) *Server {
	return &Server{mgr: mgr}
}

// ListenAndServe binds addr and serves scan connections until ctx is
// canceled, at which point the listener is closed. Connections already
// accepted are not closed by cancellation: each keeps serving requests
// until its client closes it or an I/O error ends it. It blocks until the
// listener stops accepting.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("scanserver: listen: %w", err)
	}
	s.ln = ln
	klog.Infof("scanserver: listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("scanserver: accept: %w", err)
		}
		metricsConnectionsAccepted.Inc()
		metricsConnectionsActive.Inc()
		go func() {
			defer metricsConnectionsActive.Dec()
			if err := s.handleConn(conn); err != nil && err != io.EOF {
				klog.Warningf("scanserver: session %s aborted: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// handleConn runs request/response cycles on one connection until EOF or
// an I/O or protocol error, per spec.md §6: "Connection closes on EOF; any
// I/O error aborts the session."
func (s *Server) handleConn(conn net.Conn) error {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		if err := s.handleOneRequest(r, w); err != nil {
			return err
		}
	}
}

func (s *Server) handleOneRequest(r *bufio.Reader, w *bufio.Writer) error {
	start := time.Now()
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err // includes io.EOF on a clean close between requests
	}
	requestType := nativeEndian.Uint32(hdr[0:4])
	requestCount := nativeEndian.Uint32(hdr[4:8])

	width, err := widthForRequestType(requestType)
	if err != nil {
		return err
	}

	hashes := make([][]byte, requestCount)
	buf := make([]byte, width)
	for i := uint32(0); i < requestCount; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("scanserver: read hash %d/%d: %w", i, requestCount, err)
		}
		hashes[i] = append([]byte(nil), buf...)
	}
	metricsHashesQueried.Add(float64(requestCount))

	results, err := s.mgr.Scan(hashes)
	if err != nil {
		return fmt.Errorf("scanserver: scan: %w", err)
	}

	// The response for a request of a few million hashes is built once per
	// request into a pooled scratch buffer, grounded on bucketteer/read.go's
	// use of the same pool for its own serving hot path, rather than one
	// small Write call per matched entry.
	respBuf := bytebufferpool.Get()
	defer bytebufferpool.Put(respBuf)
	respBuf.Reset()

	var word [4]byte
	nativeEndian.PutUint32(word[:], uint32(len(results)))
	respBuf.Write(word[:])
	var entry [8]byte
	for _, res := range results {
		nativeEndian.PutUint32(entry[0:4], uint32(res.Index))
		nativeEndian.PutUint32(entry[4:8], res.Count)
		respBuf.Write(entry[:])
	}
	if _, err := w.Write(respBuf.Bytes()); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	metricsRequestsServed.Inc()
	metricsRequestDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// KindForRequestType maps a digest.Kind to the request_type constant a
// client must send to query a database built on that kind, used by the
// `server` command to validate the opened database against the wire
// protocol's fixed three-kind vocabulary before it starts listening.
func KindForRequestType(k digest.Kind) (uint32, error) {
	switch k {
	case digest.MD5:
		return RequestMD5, nil
	case digest.SHA1:
		return RequestSHA1, nil
	case digest.SHA256:
		return RequestSHA256, nil
	default:
		return 0, fmt.Errorf("scanserver: digest kind %q has no wire request_type", k)
	}
}
