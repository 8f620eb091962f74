package detect

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCategoryTable(t *testing.T) {
	t.Parallel()

	table := DefaultCategoryTable()

	tests := []struct {
		classID int
		want    Category
	}{
		{0, Person},
		{2, Vehicle},
		{8, Vehicle},
		{9, Other},
		{16, Animal},
		{32, SportsItem},
		{47, Food},
		{56, Furniture},
		{63, Electronics},
		{79, Other},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Lookup(tt.classID), "class id %d", tt.classID)
	}

	assert.False(t, table.Valid(-1))
	assert.False(t, table.Valid(COCOClasses))
}

func TestCategoryTableAssign(t *testing.T) {
	t.Parallel()

	table, err := NewCategoryTable(3)
	require.NoError(t, err)

	require.NoError(t, table.Assign(SportsItem, 2))
	assert.Equal(t, SportsItem, table.Lookup(2))
	assert.Equal(t, Other, table.Lookup(1))
	assert.Error(t, table.Assign(Person, 3))

	_, err = NewCategoryTable(0)
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	for _, cat := range Categories() {
		got, err := ParseCategory(cat.String())
		require.NoError(t, err)
		assert.Equal(t, cat, got)
	}

	got, err := ParseCategory(" Sports-Item ")
	require.NoError(t, err)
	assert.Equal(t, SportsItem, got)

	_, err = ParseCategory("ball")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"negative floor", func(c *Config) { c.ConfidenceFloor = -0.1 }, false},
		{"floor above one", func(c *Config) { c.ConfidenceFloor = 1.5 }, false},
		{"nan floor", func(c *Config) { c.ConfidenceFloor = float32(math.NaN()) }, false},
		{"zero width", func(c *Config) { c.FrameWidth = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(DefaultConfig(), nil)
	require.NoError(t, err)

	nan := float32(math.NaN())

	frame := Frame{
		Index:     7,
		Timestamp: 250 * time.Millisecond,
		Width:     640,
		Height:    480,
		Detections: []Raw{
			// kept as is
			{ClassID: 0, Confidence: 0.9, Box: BoxRect{100, 100, 140, 200}},
			// below floor
			{ClassID: 0, Confidence: 0.2, Box: BoxRect{10, 10, 20, 20}},
			// clamped to frame
			{ClassID: 32, Confidence: 0.6, Box: BoxRect{-10, 470, 10, 490}},
			// out of range class
			{ClassID: 90, Confidence: 0.9, Box: BoxRect{10, 10, 20, 20}},
			// inverted box
			{ClassID: 0, Confidence: 0.9, Box: BoxRect{50, 50, 40, 60}},
			// NaN coordinates
			{ClassID: 0, Confidence: 0.9, Box: BoxRect{nan, 50, 60, 60}},
			// fully outside the frame
			{ClassID: 0, Confidence: 0.9, Box: BoxRect{700, 10, 720, 20}},
			// confidence above one
			{ClassID: 0, Confidence: 1.2, Box: BoxRect{10, 10, 20, 20}},
		},
	}

	dets := n.Normalize(frame)
	require.Len(t, dets, 2)

	assert.Equal(t, Person, dets[0].Category)
	assert.Equal(t, BBox{X: 100, Y: 100, W: 40, H: 100}, dets[0].Box)
	assert.Equal(t, 250*time.Millisecond, dets[0].Timestamp)

	assert.Equal(t, SportsItem, dets[1].Category)
	assert.Equal(t, BBox{X: 0, Y: 470, W: 10, H: 10}, dets[1].Box)

	assert.Less(t, dets[0].ID, dets[1].ID)

	x, y := dets[0].Box.Centroid()
	assert.Equal(t, float32(120), x)
	assert.Equal(t, float32(150), y)
}

func TestNormalizeDefaultFrameSize(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(DefaultConfig(), nil)
	require.NoError(t, err)

	dets := n.Normalize(Frame{
		Detections: []Raw{{ClassID: 0, Confidence: 0.8, Box: BoxRect{600, 400, 700, 500}}},
	})

	require.Len(t, dets, 1)
	assert.Equal(t, BBox{X: 600, Y: 400, W: 40, H: 80}, dets[0].Box)
}

func TestNormalizeAllowedCategories(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Allowed = []Category{Person, SportsItem}

	n, err := NewNormalizer(cfg, nil)
	require.NoError(t, err)

	dets := n.Normalize(Frame{
		Width:  640,
		Height: 480,
		Detections: []Raw{
			{ClassID: 2, Confidence: 0.9, Box: BoxRect{0, 0, 10, 10}},
			{ClassID: 32, Confidence: 0.9, Box: BoxRect{0, 0, 10, 10}},
		},
	})

	require.Len(t, dets, 1)
	assert.Equal(t, SportsItem, dets[0].Category)
}

func TestNormalizeEmptyFrame(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(DefaultConfig(), nil)
	require.NoError(t, err)

	assert.Empty(t, n.Normalize(Frame{Index: 1}))
}
