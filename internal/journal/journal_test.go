package journal_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/finvoice-bridge/internal/journal"
)

func TestMemory_Record(t *testing.T) {
	ctx := context.Background()
	m := journal.NewMemory()

	require.NoError(t, m.Record(ctx, journal.Entry{Profile: "a", Record: "1", Event: "submit"}))
	require.NoError(t, m.Record(ctx, journal.Entry{Profile: "b", Record: "2", Event: "uploaded"}))
	require.NoError(t, m.Record(ctx, journal.Entry{Profile: "a", Record: "3", Event: "delivery_confirmed"}))

	entries := m.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.False(t, e.At.IsZero())
	}

	recent, err := m.Recent(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].Record)
	assert.Equal(t, "1", recent[1].Record)

	recent, err = m.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "3", recent[0].Record)
}

func TestDiscard(t *testing.T) {
	var r journal.Recorder = journal.Discard{}
	assert.NoError(t, r.Record(context.Background(), journal.Entry{}))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("FINVOICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FINVOICE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	p, err := journal.OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()

	profile := "test-" + uuid.NewString()
	require.NoError(t, p.Record(ctx, journal.Entry{
		RunID:     "run",
		Profile:   profile,
		Direction: journal.Outbound,
		Record:    "42",
		From:      "sending",
		To:        "senddone",
		Event:     "delivery_confirmed",
	}))

	recent, err := p.Recent(ctx, profile, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, journal.Outbound, recent[0].Direction)
	assert.Equal(t, "senddone", recent[0].To)
}
