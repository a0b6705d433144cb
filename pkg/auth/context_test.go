package auth

import (
	"context"
	"errors"
	"testing"
)

func TestWithBuyer_BuyerFromCtx(t *testing.T) {
	want := Buyer{ID: "U1", Name: "Alice"}
	ctx := WithBuyer(context.Background(), want)

	got, err := BuyerFromCtx(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestBuyerFromCtx_EmptyContext(t *testing.T) {
	_, err := BuyerFromCtx(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestBuyerFromCtx_BlankID(t *testing.T) {
	ctx := WithBuyer(context.Background(), Buyer{ID: "  ", Name: "Alice"})
	_, err := BuyerFromCtx(ctx)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for blank id, got %v", err)
	}
}

func TestBuyerFromCtx_Isolation(t *testing.T) {
	ctx1 := WithBuyer(context.Background(), Buyer{ID: "U1"})
	ctx2 := WithBuyer(context.Background(), Buyer{ID: "U2"})

	got1, _ := BuyerFromCtx(ctx1)
	got2, _ := BuyerFromCtx(ctx2)

	if got1.ID != "U1" || got2.ID != "U2" {
		t.Fatalf("expected isolated buyers, got %q and %q", got1.ID, got2.ID)
	}
}
