package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/jobstash/internal/grpcproto"
	"github.com/S0me0neR0man/jobstash/internal/jobs"
	"github.com/S0me0neR0man/jobstash/internal/token"
)

type GRPCClient struct {
	conn   *grpc.ClientConn
	client grpcproto.JobRegistryClient
}

// NewGRPClient connects to the registry at addr. A non-empty tok is sent as
// a bearer token with every call.
func NewGRPClient(addr, tok string, extra ...grpc.DialOption) (*GRPCClient, error) {
	c := GRPCClient{}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if tok != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(token.NewStatic(tok)))
	}
	opts = append(opts, extra...)

	var err error
	c.conn, err = grpc.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	c.client = grpcproto.NewJobRegistryClient(c.conn)

	return &c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// notFound turns a NotFound status back into the registry error.
func notFound(err error, op string, id uint64) error {
	if status.Code(err) == codes.NotFound {
		return &jobs.NotFoundError{Op: op, ID: id}
	}
	return err
}

func (c *GRPCClient) Create(ctx context.Context, p jobs.JobPayload) (jobs.Job, error) {
	resp, err := c.client.Create(ctx, grpcproto.PayloadToStruct(p))
	if err != nil {
		return jobs.Job{}, err
	}
	return grpcproto.JobFromStruct(resp)
}

func (c *GRPCClient) Get(ctx context.Context, id uint64) (jobs.Job, error) {
	resp, err := c.client.Get(ctx, wrapperspb.UInt64(id))
	if err != nil {
		return jobs.Job{}, notFound(err, "", id)
	}
	return grpcproto.JobFromStruct(resp)
}

func (c *GRPCClient) Update(ctx context.Context, id uint64, u jobs.JobUpdate) (jobs.Job, error) {
	resp, err := c.client.Update(ctx, grpcproto.UpdateToStruct(id, u))
	if err != nil {
		return jobs.Job{}, notFound(err, "update", id)
	}
	return grpcproto.JobFromStruct(resp)
}

func (c *GRPCClient) Delete(ctx context.Context, id uint64) (jobs.Job, error) {
	resp, err := c.client.Delete(ctx, wrapperspb.UInt64(id))
	if err != nil {
		return jobs.Job{}, notFound(err, "delete", id)
	}
	return grpcproto.JobFromStruct(resp)
}

// List returns up to limit jobs with id >= from and the total job count.
func (c *GRPCClient) List(ctx context.Context, from uint64, limit int) ([]jobs.Job, uint64, error) {
	resp, err := c.client.List(ctx, grpcproto.ListRequestToStruct(from, limit))
	if err != nil {
		return nil, 0, err
	}
	return grpcproto.ListFromStruct(resp)
}
