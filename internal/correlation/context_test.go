package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoot(t *testing.T) {
	svc := NewService()
	ctx, cc := svc.NewRoot(context.Background(), "project::switch")

	assert.NotEmpty(t, cc.CorrelationID)
	assert.Equal(t, "project::switch", cc.RootEventType)
	assert.Equal(t, 0, cc.Depth)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, cc, got)

	// Each root gets a fresh id.
	_, cc2 := svc.NewRoot(context.Background(), "project::switch")
	assert.NotEqual(t, cc.CorrelationID, cc2.CorrelationID)
	assert.Equal(t, 2, svc.Stats().ChainsCreated)
}

func TestEnterExitChild(t *testing.T) {
	svc := NewService()
	ctx, _ := svc.NewRoot(context.Background(), "window::new")

	child := svc.EnterChild(ctx)
	cc, _ := FromContext(child)
	assert.Equal(t, 1, cc.Depth)

	grandchild := svc.EnterChild(child)
	cc, _ = FromContext(grandchild)
	assert.Equal(t, 2, cc.Depth)

	// The parent context is unchanged: contexts are immutable values.
	cc, _ = FromContext(ctx)
	assert.Equal(t, 0, cc.Depth)

	back := svc.ExitChild(grandchild)
	cc, _ = FromContext(back)
	assert.Equal(t, 1, cc.Depth)

	// Depth never goes below zero.
	bottom := svc.ExitChild(svc.ExitChild(back))
	cc, _ = FromContext(bottom)
	assert.Equal(t, 0, cc.Depth)
}

func TestFromContext_Absent(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	_, ok = FromContext(nil)
	assert.False(t, ok)
}

func TestEnterChild_WithoutRootIsNoOp(t *testing.T) {
	svc := NewService()
	ctx := svc.EnterChild(context.Background())
	_, ok := FromContext(ctx)
	assert.False(t, ok)
}
