package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/jobstash/internal/btree"
	"github.com/S0me0neR0man/jobstash/internal/codec"
	"github.com/S0me0neR0man/jobstash/internal/config"
	"github.com/S0me0neR0man/jobstash/internal/grpcproto"
	"github.com/S0me0neR0man/jobstash/internal/jobs"
	"github.com/S0me0neR0man/jobstash/internal/region"
	"github.com/S0me0neR0man/jobstash/internal/token"
)

type requestIDKey struct{}

// RequestID returns the id the server assigned to the call in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GRPCServer serves the job registry. Registry calls run one at a time.
type GRPCServer struct {
	grpcproto.UnimplementedJobRegistryServer

	registry *jobs.Registry
	mu       sync.Mutex
	getSFG   singleflight.Group

	sugar *zap.SugaredLogger
	gserv *grpc.Server
	conf  *config.Config

	wg sync.WaitGroup
}

func NewJobServer(registry *jobs.Registry, conf *config.Config, logger *zap.Logger) *GRPCServer {
	ss := &GRPCServer{
		registry: registry,
		conf:     conf,
		sugar:    logger.Sugar(),
	}
	ss.gserv = grpc.NewServer(grpc.UnaryInterceptor(ss.intercept))
	grpcproto.RegisterJobRegistryServer(ss.gserv, ss)
	return ss
}

// Start listens on the configured address and serves until ctx is done.
func (ss *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ss.conf.Listen)
	if err != nil {
		return err
	}
	return ss.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (ss *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	ss.sugar.Infow("grpc server start", "addr", lis.Addr().String(), "auth", ss.conf.Token != "")

	ss.wg.Add(1)
	go ss.gracefulStop(ctx)

	return ss.gserv.Serve(lis)
}

func (ss *GRPCServer) gracefulStop(ctx context.Context) {
	defer ss.wg.Done()

	<-ctx.Done()
	ss.gserv.GracefulStop()
	ss.sugar.Infow("grpc server stopped")
}

func (ss *GRPCServer) Wait() {
	ss.wg.Wait()
}

// intercept authenticates the call, tags it with a request id and logs it.
func (ss *GRPCServer) intercept(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	reqID := uuid.NewString()
	ctx = context.WithValue(ctx, requestIDKey{}, reqID)

	if err := token.Check(ctx, ss.conf.Token); err != nil {
		ss.sugar.Warnw("rejected call", "method", info.FullMethod, "request", reqID, "error", err)
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	if code == codes.Internal || code == codes.DataLoss {
		ss.sugar.Errorw("call failed",
			"method", info.FullMethod, "request", reqID, "duration", time.Since(start), "error", err)
	} else {
		ss.sugar.Debugw("call",
			"method", info.FullMethod, "request", reqID, "duration", time.Since(start), "code", code)
	}
	return resp, err
}

// toStatus maps store errors to gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, codec.ErrSizeExceeded), errors.Is(err, codec.ErrSizeMismatch),
		errors.Is(err, grpcproto.ErrBadMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, codec.ErrCorruptEncoding), errors.Is(err, btree.ErrCorrupt):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, jobs.ErrIDSpaceExhausted), errors.Is(err, region.ErrExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (ss *GRPCServer) Create(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := grpcproto.PayloadFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}

	ss.mu.Lock()
	job, err := ss.registry.Create(p)
	ss.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}
	ss.sugar.Infow("job created", "id", job.ID, "request", RequestID(ctx))
	return grpcproto.JobToStruct(job), nil
}

// Get coalesces concurrent reads of the same id.
func (ss *GRPCServer) Get(ctx context.Context, in *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	id := in.GetValue()
	res, err, shared := ss.getSFG.Do(getKey(id), func() (interface{}, error) {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		return ss.registry.Get(id)
	})
	if err != nil {
		return nil, toStatus(err)
	}
	if shared {
		ss.sugar.Debugw("get shared", "id", id, "request", RequestID(ctx))
	}
	return grpcproto.JobToStruct(res.(jobs.Job)), nil
}

// forgetGet makes Gets that start after a write run a fresh read instead of
// joining one that may have read the old record. Must be called with mu held.
func (ss *GRPCServer) forgetGet(id uint64) {
	ss.getSFG.Forget(getKey(id))
}

func getKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (ss *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, u, err := grpcproto.UpdateFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}

	ss.mu.Lock()
	job, err := ss.registry.Update(id, u)
	ss.forgetGet(id)
	ss.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}
	ss.sugar.Infow("job updated", "id", id, "request", RequestID(ctx))
	return grpcproto.JobToStruct(job), nil
}

func (ss *GRPCServer) Delete(ctx context.Context, in *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	ss.mu.Lock()
	job, err := ss.registry.Delete(in.GetValue())
	ss.forgetGet(in.GetValue())
	ss.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}
	ss.sugar.Infow("job deleted", "id", job.ID, "request", RequestID(ctx))
	return grpcproto.JobToStruct(job), nil
}

func (ss *GRPCServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	from, limit, err := grpcproto.ListRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}

	ss.mu.Lock()
	list, err := ss.registry.List(from, limit)
	total := ss.registry.Count()
	ss.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}
	return grpcproto.ListToStruct(list, total), nil
}
