package gate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/pkg/gate"
)

func allow() gate.Gate {
	return gate.Custom(func(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
		return true, nil
	}, "")
}

func deny(reason string) gate.Gate {
	return gate.Custom(func(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
		return false, nil
	}, reason)
}

func TestAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := gate.Principal{UserID: uuid.New()}

	// All(G) behaves like G.
	d, err := gate.All(deny("nope")).Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "nope", d.Reason)
	assert.True(t, gate.All(allow()).Allows(ctx, p))

	// Short-circuits on the first denial; its reason wins.
	d, err = gate.All(allow(), deny("first failure"), deny("never reached")).Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "first failure", d.Reason)

	assert.True(t, gate.All(allow(), allow(), allow()).Allows(ctx, p))
}

func TestAny(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := gate.Principal{UserID: uuid.New()}

	// Any(G) behaves like G.
	assert.False(t, gate.Any(deny("nope")).Allows(ctx, p))
	assert.True(t, gate.Any(allow()).Allows(ctx, p))

	// One success suffices, regardless of position.
	assert.True(t, gate.Any(deny("a"), allow()).Allows(ctx, p))
	assert.True(t, gate.Any(allow(), deny("b")).Allows(ctx, p))

	// Total failure aggregates every reason.
	d, err := gate.Any(deny("not staff"), deny("not licensed")).Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "not staff; not licensed", d.Reason)
}

func TestCombinators_Nesting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := gate.Principal{UserID: uuid.New()}

	g := gate.All(
		gate.Any(deny("not superadmin"), allow()),
		gate.Any(allow(), deny("unreached")),
	)
	assert.True(t, g.Allows(ctx, p))

	g = gate.All(
		gate.Any(deny("not superadmin"), deny("not admin")),
		allow(),
	)
	d, err := g.Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "not superadmin; not admin", d.Reason)
}

func TestCombinators_Empty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := gate.Principal{UserID: uuid.New()}

	_, err := gate.WithoutGracefulFail(gate.All()).Check(ctx, p)
	assert.ErrorIs(t, err, gate.ErrEmptyGateConfig)

	_, err = gate.WithoutGracefulFail(gate.Any()).Check(ctx, p)
	assert.ErrorIs(t, err, gate.ErrEmptyGateConfig)
}

func TestAny_KeepsFirstFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := gate.Principal{UserID: uuid.New()}

	g := gate.Any(
		gate.WithFallback(deny("a"), "/first", ""),
		gate.WithFallback(deny("b"), "/second", ""),
	)

	d, err := g.Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "/first", d.Fallback)
}
