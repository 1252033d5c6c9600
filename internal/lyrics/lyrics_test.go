package lyrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWords(t *testing.T) {
	freq := CountWords(
		"It's a LOVE story,\nbaby just say yes",
		"Yes! yes...\tlove",
	)

	want := Frequency{
		"its": 1, "a": 1, "love": 2, "story": 1,
		"baby": 1, "just": 1, "say": 1, "yes": 3,
	}
	if diff := cmp.Diff(want, freq); diff != "" {
		t.Errorf("CountWords mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 11, freq.Total())
}

func TestCountWords_DropsDigitsAndUnicodeLetters(t *testing.T) {
	freq := CountWords("café 22 viva la vida")
	assert.Equal(t, Frequency{"caf": 1, "viva": 1, "la": 1, "vida": 1}, freq)
}

func TestSoundex(t *testing.T) {
	tests := map[string]string{
		"Robert":   "R163",
		"Rupert":   "R163",
		"Ashcraft": "A261",
		"Tymczak":  "T522",
		"Pfister":  "P236",
		"Honeyman": "H555",
		"yellow":   "Y400",
		"a":        "A000",
		"":         "",
		"123":      "",
	}
	for word, want := range tests {
		assert.Equal(t, want, Soundex(word), "Soundex(%q)", word)
	}
}

func TestCompareSounds(t *testing.T) {
	a := Frequency{"robert": 1, "yellow": 3, "fix": 1}
	b := Frequency{"rupert": 2, "sky": 1}

	// robert/rupert share R163; yellow (Y400) and fix (F200) are only in a; sky (S200) only in b
	got := CompareSounds(a, b)
	assert.Equal(t, SoundComparison{Shared: 1, OnlyA: 2, OnlyB: 1}, got)
}

func TestCommonWords(t *testing.T) {
	a := Frequency{"never": 60, "forever": 200, "love": 500, "trouble": 100}
	b := Frequency{"never": 50, "clocks": 101, "trouble": 0}

	// never: 110 > 100; forever: 200; love too short; clocks: 101; trouble: 100 is not > 100
	got := CommonWords(a, b, 100, 4)
	assert.Equal(t, []string{"clocks", "forever", "never"}, got)
}

func TestAverageWordLength(t *testing.T) {
	assert.InDelta(t, 3.5, AverageWordLength(Frequency{"ab": 1, "abcde": 1}), 1e-9)
	assert.InDelta(t, 2.75, AverageWordLength(Frequency{"ab": 3, "abcde": 1}), 1e-9)
	assert.Zero(t, AverageWordLength(Frequency{}))
}

func TestDirSource_Load(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "taylor")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first"), 0644))

	src := NewDirSource(root, map[string]string{"taylor": "taylor", "missing": "nope"})

	blobs, err := src.Load(context.Background(), "taylor")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, blobs)

	_, err = src.Load(context.Background(), "missing")
	assert.Error(t, err)

	_, err = src.Load(context.Background(), "unknown")
	assert.ErrorContains(t, err, "unknown dataset")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "taylor")
	assert.True(t, errors.Is(err, ErrNotFound))

	freq := Frequency{"love": 2}
	require.NoError(t, store.Put(ctx, "taylor", freq))

	// The store keeps its own copy
	freq["love"] = 99
	got, err := store.Get(ctx, "taylor")
	require.NoError(t, err)
	assert.Equal(t, 2, got["love"])

	got["love"] = 42
	again, _ := store.Get(ctx, "taylor")
	assert.Equal(t, 2, again["love"])

	require.NoError(t, store.Put(ctx, "coldplay", Frequency{}))
	names, err := store.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"coldplay", "taylor"}, names)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, "ds", Frequency{"w": i})
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Get(ctx, "ds")
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "ds")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
