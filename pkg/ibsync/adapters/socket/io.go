package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
)

// Wire-level field and type names of the request envelope.
const (
	fieldType      = "type"
	fieldKind      = "kind"
	fieldRequestID = "req_id"
	fieldParams    = "params"
	fieldClientID  = "client_id"
	fieldSessionID = "session_id"

	typeHandshake = "handshake"
	typeRequest   = "request"
	typeCancel    = "cancel"
)

// Send issues a request envelope under the given correlation id.
func (a *Adapter) Send(_ context.Context, kind events.RequestKind, requestID int64, params any) error {
	if params == nil {
		params = map[string]any{}
	}
	envelope := map[string]any{
		fieldType:      typeRequest,
		fieldKind:      string(kind),
		fieldRequestID: requestID,
		fieldParams:    params,
	}

	return a.writeEnvelope(envelope)
}

// Cancel sends a best-effort cancellation for a correlation id.
func (a *Adapter) Cancel(_ context.Context, requestID int64) error {
	return a.writeEnvelope(map[string]any{
		fieldType:      typeCancel,
		fieldRequestID: requestID,
	})
}

func (a *Adapter) writeEnvelope(envelope map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ready {
		return gwerrs.NewTransportError(
			gwerrs.ErrCodeWriteFailed,
			"transport not ready",
			nil,
		)
	}

	return a.writeEnvelopeLocked(envelope)
}

// writeEnvelopeLocked marshals and writes one newline-framed envelope.
// Callers must hold a.mu.
func (a *Adapter) writeEnvelopeLocked(envelope map[string]any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return gwerrs.NewTransportError(
			gwerrs.ErrCodeWriteFailed,
			"marshal envelope",
			err,
		)
	}

	if _, err := a.conn.Write(append(data, '\n')); err != nil {
		return gwerrs.NewTransportError(
			gwerrs.ErrCodeWriteFailed,
			"write envelope",
			err,
		)
	}

	return nil
}

// ReadEvents continuously reads newline-framed JSON events from the
// socket. Both returned channels close when the session ends. A socket
// closed by Close() or by the remote ends the stream without an error;
// anything else surfaces as a transport error.
func (a *Adapter) ReadEvents(ctx context.Context) (<-chan map[string]any, <-chan error) {
	msgCh := make(chan map[string]any, 10)
	errCh := make(chan error, 1)

	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()

	go func() {
		defer close(msgCh)
		defer close(errCh)

		if conn == nil {
			errCh <- gwerrs.NewTransportError(
				gwerrs.ErrCodeReadFailed,
				"transport not connected",
				nil,
			)

			return
		}

		scanner := bufio.NewScanner(conn)
		scanBuf := make([]byte, 64*1024)
		scanner.Buffer(scanBuf, a.opts.MaxEventBytes)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var raw map[string]any
			if err := json.Unmarshal(line, &raw); err != nil {
				a.log.WithError(err).Debug("dropping undecodable event line")

				continue
			}

			select {
			case msgCh <- raw:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && !isClosedConn(err) {
			errCh <- gwerrs.NewTransportError(
				gwerrs.ErrCodeReadFailed,
				"read event stream",
				err,
			)
		}
	}()

	return msgCh, errCh
}

func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
