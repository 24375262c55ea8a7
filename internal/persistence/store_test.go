package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/platform/kv"
)

var now = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

func newStore() (*Store, *kv.Memory) {
	mem := kv.NewMemory()
	return New(mem, nil), mem
}

func TestCurrentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore()
	doc := invoice.Demo(now)

	require.NoError(t, s.SaveCurrent(ctx, doc))
	raw, ok, _ := mem.Get(ctx, CurrentKey)
	require.True(t, ok)
	assert.Contains(t, raw, `"lineItems"`)

	got, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestLoadCurrentMissing(t *testing.T) {
	s, _ := newStore()
	_, err := s.LoadCurrent(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, invoice.ErrNotStored)
}

func TestLoadCurrentCorruptIsQuarantined(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore()
	require.NoError(t, mem.Set(ctx, CurrentKey, "{not json"))

	_, err := s.LoadCurrent(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)

	var cerr *CorruptError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, CurrentKey, cerr.Key)
	assert.Equal(t, "{not json", cerr.Payload)

	q, ok, _ := mem.Get(ctx, CurrentKey+".corrupt")
	assert.True(t, ok)
	assert.Equal(t, "{not json", q)
}

func TestSavedDocumentsAreDoubleEncoded(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore()
	require.NoError(t, s.SaveNamed(ctx, "acme", invoice.Default(now)))

	raw, _, _ := mem.Get(ctx, SavedKey)
	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Contains(t, m, "acme")

	var doc invoice.Document
	require.NoError(t, json.Unmarshal([]byte(m["acme"]), &doc))
	assert.Equal(t, "Acme Corporation", doc.Business.Name)
}

func TestSaveNamedOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()

	first := invoice.Default(now)
	second := invoice.Default(now)
	second.Client.Name = "Second Client"
	require.NoError(t, s.SaveNamed(ctx, "x", first))
	require.NoError(t, s.SaveNamed(ctx, " x ", second))

	got, err := s.GetNamed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "Second Client", got.Client.Name)

	list, err := s.ListNamed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, list.Names())
}

func TestSaveNamedRejectsBlankName(t *testing.T) {
	s, _ := newStore()
	assert.ErrorIs(t, s.SaveNamed(context.Background(), "   ", invoice.Default(now)), ErrEmptyName)
}

func TestDeleteNamedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	require.NoError(t, s.SaveNamed(ctx, "a", invoice.Default(now)))
	require.NoError(t, s.SaveNamed(ctx, "b", invoice.Default(now)))

	require.NoError(t, s.DeleteNamed(ctx, "a"))
	require.NoError(t, s.DeleteNamed(ctx, "a"))
	require.NoError(t, s.DeleteNamed(ctx, "never-saved"))

	list, err := s.ListNamed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, list.Names())

	_, err = s.GetNamed(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNamedReportsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore()
	good, _ := json.Marshal(invoice.Default(now))
	blob, _ := json.Marshal(map[string]string{"good": string(good), "bad": "{oops"})
	require.NoError(t, mem.Set(ctx, SavedKey, string(blob)))

	list, err := s.ListNamed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, list.Names())
	assert.Contains(t, list.Corrupt, "bad")

	_, err = s.GetNamed(ctx, "bad")
	assert.ErrorIs(t, err, ErrCorrupt)
	var cerr *CorruptError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, EntryKey("bad")+".corrupt", cerr.QuarantineKey)
	q, ok, _ := mem.Get(ctx, cerr.QuarantineKey)
	assert.True(t, ok)
	assert.Equal(t, "{oops", q)

	raw, _, _ := mem.Get(ctx, SavedKey)
	assert.Equal(t, string(blob), raw)
}

func TestCorruptSavedBlobIsQuarantinedBeforeRewrite(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore()
	require.NoError(t, mem.Set(ctx, SavedKey, "[1,2"))

	err := s.SaveNamed(ctx, "new", invoice.Default(now))
	assert.ErrorIs(t, err, ErrCorrupt)

	raw, _, _ := mem.Get(ctx, SavedKey)
	assert.Equal(t, "[1,2", raw)
	q, ok, _ := mem.Get(ctx, SavedKey+".corrupt")
	assert.True(t, ok)
	assert.Equal(t, "[1,2", q)

	_, err = s.ListNamed(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadNormalizesOlderPayloads(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore()
	require.NoError(t, mem.Set(ctx, CurrentKey, `{"business":{"name":"B"},"meta":{"number":"1"},"taxRate":5}`))

	doc, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, invoice.DiscountPercent, doc.DiscountType)
	assert.Equal(t, "USD", doc.Currency)
	assert.NotNil(t, doc.LineItems)
}

func TestStoreOverRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := New(kv.NewRedis(client, "test"), nil)

	require.NoError(t, s.SaveNamed(ctx, "r", invoice.Demo(now)))
	require.NoError(t, s.SaveCurrent(ctx, invoice.Demo(now)))
	assert.True(t, mr.Exists("test:"+SavedKey))
	assert.True(t, mr.Exists("test:"+CurrentKey))

	got, err := s.GetNamed(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, got.LineItems, 4)
}

func TestEditorWritesThrough(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	e := invoice.NewEditor(invoice.EditorConfig{Store: s, Now: func() time.Time { return now }})

	_, err := e.SetClient(ctx, invoice.Party{Name: "Persisted"})
	require.NoError(t, err)

	restored := invoice.NewEditor(invoice.EditorConfig{Store: s, Now: func() time.Time { return now }})
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, "Persisted", restored.Snapshot().Client.Name)

	empty := invoice.NewEditor(invoice.EditorConfig{Store: New(kv.NewMemory(), nil)})
	assert.NoError(t, empty.Restore(ctx))
}
