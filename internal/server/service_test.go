package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
)

func dialExtraction(t *testing.T, proc Extractor) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterExtractionServer(srv, NewExtractionService(proc, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCExtract(t *testing.T) {
	proc := &fakeExtractor{out: sampleOutcome()}
	conn := dialExtraction(t, proc)

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		MDDPI, "350", MDEnhanced, "true", MDMaxPages, "3", MDFilename, "grpc.pdf")
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, ExtractMethod, wrapperspb.Bytes([]byte("%PDF-1.4")), out); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := pipeline.Options{DPI: 350, Enhanced: true, MaxPages: 3}
	if proc.opts != want {
		t.Errorf("options = %+v, want %+v", proc.opts, want)
	}
	if proc.up.Filename != "grpc.pdf" || string(proc.up.Data) != "%PDF-1.4" {
		t.Errorf("upload = %q %q", proc.up.Filename, proc.up.Data)
	}
	if got := out.Fields["status"].GetStringValue(); got != "LLM_OK" {
		t.Errorf("status = %q", got)
	}
	fields := out.Fields["fields"].GetStructValue()
	if fields.Fields["contract_number"].GetStringValue() != "123" ||
		fields.Fields["contract_amount"].GetStringValue() != "unknown" {
		t.Errorf("fields = %v", fields)
	}
	if got := out.Fields["metrics"].GetStructValue().Fields["fields_found"].GetNumberValue(); got != 2 {
		t.Errorf("fields_found = %v", got)
	}
}

func TestGRPCExtractErrors(t *testing.T) {
	cases := []struct {
		name string
		proc *fakeExtractor
		md   []string
		code codes.Code
	}{
		{"bad dpi", &fakeExtractor{out: sampleOutcome()}, []string{MDDPI, "high"}, codes.InvalidArgument},
		{"bad flag", &fakeExtractor{out: sampleOutcome()}, []string{MDForceOCR, "maybe"}, codes.InvalidArgument},
		{"not a pdf", &fakeExtractor{err: common.NewAppError("INPUT_ERROR", "missing %PDF header", common.ErrNotPDF)}, nil, codes.InvalidArgument},
		{"llm down", &fakeExtractor{err: common.ErrLLMUnavailable}, nil, codes.Unavailable},
		{"deadline", &fakeExtractor{err: context.DeadlineExceeded}, nil, codes.DeadlineExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := dialExtraction(t, tc.proc)
			ctx := context.Background()
			if len(tc.md) > 0 {
				ctx = metadata.AppendToOutgoingContext(ctx, tc.md...)
			}
			err := conn.Invoke(ctx, ExtractMethod, wrapperspb.Bytes([]byte("x")), new(structpb.Struct))
			if status.Code(err) != tc.code {
				t.Errorf("code = %v, want %v (%v)", status.Code(err), tc.code, err)
			}
		})
	}
}
