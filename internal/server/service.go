package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
)

// ExtractMethod is the full gRPC method name of ExtractionService.Extract.
const ExtractMethod = "/contracts.v1.ExtractionService/Extract"

// Metadata keys carrying extraction options on gRPC calls.
const (
	MDDPI      = "x-dpi"
	MDEnhanced = "x-enhanced"
	MDForceOCR = "x-force-ocr"
	MDMaxPages = "x-max-pages"
	MDFilename = "x-filename"
)

// ExtractionServer is the gRPC service. The request is the raw PDF as a
// BytesValue; the response is the outcome as a Struct.
type ExtractionServer interface {
	Extract(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// ExtractionServiceDesc describes contracts.v1.ExtractionService using
// well-known types, so no generated stubs are needed.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: "contracts.v1.ExtractionService",
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contracts/v1/extraction.proto",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExtractMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterExtractionServer registers s on a gRPC server.
func RegisterExtractionServer(r grpc.ServiceRegistrar, s ExtractionServer) {
	r.RegisterService(&ExtractionServiceDesc, s)
}

type ExtractionService struct {
	proc   Extractor
	logger *slog.Logger
}

func NewExtractionService(proc Extractor, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{proc: proc, logger: logger}
}

// Extract implements ExtractionServer.
func (s *ExtractionService) Extract(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	md, _ := metadata.FromIncomingContext(ctx)
	opts, err := optionsFromMetadata(md)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("invalid options: %v", err)
	}
	filename := first(md, MDFilename)
	if err := common.ValidateAndReturnError(common.NewValidator().Field(MDFilename, filename, common.MaxLength(maxFilenameLen))); err != nil {
		return nil, err
	}

	s.logger.Info("grpc.extract.start", "req_id", rid, "filename", filename, "bytes", len(in.GetValue()))
	out, err := s.proc.Process(ctx, pipeline.Upload{Filename: filename, Data: in.GetValue()}, opts)
	if err != nil {
		s.logger.Warn("grpc.extract.failed", "req_id", rid, "error", err)
		return nil, common.GRPCStatus(err)
	}
	st, err := toStruct(out)
	if err != nil {
		return nil, common.InternalErrorf("encode outcome: %v", err)
	}
	s.logger.Info("grpc.extract.ok", "req_id", rid, "status", out.Status)
	return st, nil
}

func optionsFromMetadata(md metadata.MD) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	var err error
	if v := first(md, MDDPI); v != "" {
		if opts.DPI, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("%s must be an integer", MDDPI)
		}
	}
	if v := first(md, MDMaxPages); v != "" {
		if opts.MaxPages, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("%s must be an integer", MDMaxPages)
		}
	}
	if v := first(md, MDEnhanced); v != "" {
		if opts.Enhanced, err = strconv.ParseBool(v); err != nil {
			return opts, fmt.Errorf("%s must be a boolean", MDEnhanced)
		}
	}
	if v := first(md, MDForceOCR); v != "" {
		if opts.ForceOCR, err = strconv.ParseBool(v); err != nil {
			return opts, fmt.Errorf("%s must be a boolean", MDForceOCR)
		}
	}
	return opts.Normalize(), nil
}

func first(md metadata.MD, key string) string {
	if vs := md.Get(key); len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// toStruct converts the outcome through its JSON form so the Struct mirrors
// the HTTP API response.
func toStruct(out *pipeline.Outcome) (*structpb.Struct, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

