package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
)

func TestClassify(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want error
	}{
		{
			name: "missing session",
			ctx:  context.Background(),
			err:  &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such checkout.session"},
			want: ErrSessionNotFound,
		},
		{
			name: "invalid request",
			ctx:  context.Background(),
			err:  &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "Invalid integer"},
			want: ErrPaymentRejected,
		},
		{
			name: "rate limited is retryable",
			ctx:  context.Background(),
			err:  &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests},
			want: ErrPaymentUnavailable,
		},
		{
			name: "server error",
			ctx:  context.Background(),
			err:  &stripe.Error{HTTPStatusCode: http.StatusBadGateway},
			want: ErrPaymentUnavailable,
		},
		{
			name: "deadline exceeded",
			ctx:  expired,
			err:  errors.New("net/http: request canceled"),
			want: ErrPaymentUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, "op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyTimeoutKeepsDeadlineCause(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()

	err := classify(expired, "retrieve checkout session", errors.New("timeout"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause to be preserved, got %v", err)
	}
}
