package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/nid"
)

// Service is the store surface reachable through remote operations.
// *store.Store satisfies it.
type Service interface {
	NidForUUIDs(ctx context.Context, ids ...uuid.UUID) (nid.Nid, error)
	Get(ctx context.Context, n nid.Nid) ([]byte, error)
	Merge(ctx context.Context, n, patternNid, referencedComponentNid nid.Nid, data []byte) ([]byte, error)
}

// Dispatcher decodes request frames, calls the Service and encodes the
// response.
type Dispatcher struct {
	svc    Service
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over svc. A nil logger uses
// slog.Default().
func NewDispatcher(svc Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{svc: svc, logger: logger}
}

// Dispatch handles one request frame and returns the response payload.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) ([]byte, error) {
	req, err := DecodeRequest(frame)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("dispatching remote operation", "op", req.Operation())

	switch req := req.(type) {
	case NidForUUIDsRequest:
		n, err := d.svc.NidForUUIDs(ctx, req.IDs...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", NidForUUIDs, err)
		}
		return EncodeNid(n), nil

	case GetBytesRequest:
		data, err := d.svc.Get(ctx, req.Nid)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", GetBytes, req.Nid, err)
		}
		return EncodeBytes(data), nil

	case MergeRequest:
		merged, err := d.svc.Merge(ctx, req.Nid, req.PatternNid, req.ReferencedComponentNid, req.Data)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", Merge, req.Nid, err)
		}
		return EncodeBytes(merged), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, req.Operation())
}

// RoundTripper carries one request frame to a Dispatcher and returns its
// response payload.
type RoundTripper func(ctx context.Context, frame []byte) ([]byte, error)

// Client is a Service that encodes calls as request frames.
type Client struct {
	rt RoundTripper
}

// NewClient creates a client over rt.
func NewClient(rt RoundTripper) *Client {
	return &Client{rt: rt}
}

// NidForUUIDs implements Service.
func (c *Client) NidForUUIDs(ctx context.Context, ids ...uuid.UUID) (nid.Nid, error) {
	resp, err := c.rt(ctx, EncodeRequest(NidForUUIDsRequest{IDs: ids}))
	if err != nil {
		return nid.Unset, err
	}
	return DecodeNid(resp)
}

// Get implements Service.
func (c *Client) Get(ctx context.Context, n nid.Nid) ([]byte, error) {
	resp, err := c.rt(ctx, EncodeRequest(GetBytesRequest{Nid: n}))
	if err != nil {
		return nil, err
	}
	return DecodeBytes(resp)
}

// Merge implements Service.
func (c *Client) Merge(ctx context.Context, n, patternNid, referencedComponentNid nid.Nid, data []byte) ([]byte, error) {
	resp, err := c.rt(ctx, EncodeRequest(MergeRequest{
		Nid:                    n,
		PatternNid:             patternNid,
		ReferencedComponentNid: referencedComponentNid,
		Data:                   data,
	}))
	if err != nil {
		return nil, err
	}
	return DecodeBytes(resp)
}
