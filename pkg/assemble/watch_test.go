package assemble_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/usdassemble/pkg/assemble"
	"github.com/chazu/usdassemble/pkg/compose"
	"github.com/chazu/usdassemble/pkg/scene/usda"
)

func TestRelevant(t *testing.T) {
	root := "/assets/Chair"
	tests := []struct {
		path string
		want bool
	}{
		{"/assets/Chair/components", true},
		{"/assets/Chair/subcomponents", true},
		{"/assets/Chair/components/Leg", true},
		{"/assets/Chair/components/Leg/Leg_geom.usd", true},
		{"/assets/Chair/components/Leg/textures", true},
		{"/assets/Chair/components/Leg/textures/wood/Leg_base_color.png", true},
		{"/assets/Chair/Chair.usda", false},
		{"/assets/Chair/notes.txt", false},
		{"/assets/Chair/components/Leg/Leg.usd", false},
		{"/assets/Chair/components/Leg/Leg_mat.mtlx", false},
		{"/assets/Chair/components/Leg/Leg_mat.temp.mtlx", false},
		{"/assets/Chair/components/Leg/.Leg.usd.123.temp.usda", false},
		{"/assets/Chair/components/.git/config", false},
		{"/assets/Chair", false},
		{"/assets/Other/components", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, assemble.Relevant(root, tt.path))
		})
	}
}

func TestWatcherRebuildsOnChange(t *testing.T) {
	root := chairTree(t)
	builds := make(chan *assemble.Report, 8)
	w := &assemble.Watcher{
		Builder:  newBuilder(t, usda.New(), compose.DefaultOptions(), 2),
		Debounce: 50 * time.Millisecond,
		OnBuild: func(r *assemble.Report, err error) {
			assert.NoError(t, err)
			builds <- r
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, root) }()

	wait := func() *assemble.Report {
		t.Helper()
		select {
		case r := <-builds:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a build")
			return nil
		}
	}

	first := wait()
	require.NotNil(t, first)
	assert.Len(t, first.Components, 2)

	// The first build's own output must not trigger another build.
	select {
	case <-builds:
		t.Fatal("generated documents triggered a rebuild")
	case <-time.After(300 * time.Millisecond):
	}

	touch(t, root, "components/Seat/Seat_geom.usd")
	second := wait()
	require.NotNil(t, second)
	assert.Len(t, second.Components, 3)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.FileExists(t, filepath.Join(root, "components/Seat/Seat.usd"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	w := &assemble.Watcher{Builder: newBuilder(t, usda.New(), compose.DefaultOptions(), 1)}
	err := w.Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
