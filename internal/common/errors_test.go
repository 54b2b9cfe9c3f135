package common

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("upload: %w", ErrTooLarge), http.StatusRequestEntityTooLarge},
		{NewAppError("INPUT", "bad magic", ErrNotPDF), http.StatusUnsupportedMediaType},
		{ErrPDFUnreadable, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrLLMUnavailable, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{ErrDatabase, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestGRPCStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{ErrNotPDF, codes.InvalidArgument},
		{ErrNotFound, codes.NotFound},
		{fmt.Errorf("call: %w", ErrLLMUnavailable), codes.Unavailable},
		{ErrInternal, codes.Internal},
	}
	for _, tc := range cases {
		st, _ := status.FromError(GRPCStatus(tc.err))
		if st.Code() != tc.want {
			t.Errorf("GRPCStatus(%v) = %v, want %v", tc.err, st.Code(), tc.want)
		}
	}
	if GRPCStatus(nil) != nil {
		t.Errorf("GRPCStatus(nil) should be nil")
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError("INPUT", "not a pdf", ErrNotPDF)
	if !IsInputError(err) {
		t.Fatalf("expected input error")
	}
	if err.Error() != "INPUT: not a pdf: file is not a PDF" {
		t.Errorf("Error() = %q", err.Error())
	}
}
