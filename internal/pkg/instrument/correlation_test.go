package instrument_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatekeyhq/gatekey/internal/pkg/instrument"
)

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	t.Run("round trips through the context", func(t *testing.T) {
		t.Parallel()

		ctx := instrument.SetCorrelationID(context.Background(), "cid-123")
		assert.Equal(t, "cid-123", instrument.GetCorrelationID(ctx))
	})

	t.Run("empty when unset", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, instrument.GetCorrelationID(context.Background()))
	})

	t.Run("survives context cancel detachment", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(instrument.SetCorrelationID(context.Background(), "cid-456"))
		detached := context.WithoutCancel(ctx)
		cancel()

		assert.Equal(t, "cid-456", instrument.GetCorrelationID(detached))
	})
}
