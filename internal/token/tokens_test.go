package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestTokens_roundTrip(t *testing.T) {
	md, err := NewStatic("s3cret").GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"authorization": "Bearer s3cret"}, md)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(md))
	require.NoError(t, Check(ctx, "s3cret"))
	require.ErrorIs(t, Check(ctx, "other"), ErrInvalid)
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(context.Background(), ""))
	require.ErrorIs(t, Check(context.Background(), "x"), ErrMissing)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("other", "v"))
	require.ErrorIs(t, Check(ctx, "x"), ErrMissing)

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic x"))
	require.ErrorIs(t, Check(ctx, "x"), ErrInvalid)
}
