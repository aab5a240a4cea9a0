package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/pathomation/pma-go/internal/inventory"
	"github.com/pathomation/pma-go/pma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSlide() Slide {
	return Slide{
		Path:          "A/B/slide1.svs",
		Pixels:        pma.Size{Width: 100000, Height: 80000},
		Physical:      pma.Size{Width: 25000, Height: 20000},
		Resolution:    pma.Resolution{X: 0.25, Y: 0.25},
		TileSize:      256,
		MaxZoomLevel:  9,
		Magnification: 40,
		Channels:      1,
		Layers:        1,
		Levels: SortLevels(map[int]pma.TileGrid{
			9: {TilesX: 391, TilesY: 313, Total: 122383},
			8: {TilesX: 196, TilesY: 157, Total: 30772},
		}),
	}
}

func TestSortLevels(t *testing.T) {
	levels := sampleSlide().Levels
	require.Len(t, levels, 2)
	assert.Equal(t, 8, levels[0].Zoom)
	assert.Equal(t, 9, levels[1].Zoom)
}

func TestPrintSlide(t *testing.T) {
	s := sampleSlide()

	var text bytes.Buffer
	require.NoError(t, PrintSlide(&text, s, "text"))
	assert.Contains(t, text.String(), "Slide: A/B/slide1.svs")
	assert.Contains(t, text.String(), "100000 x 80000 px")
	assert.Contains(t, text.String(), "122383")

	var js bytes.Buffer
	require.NoError(t, PrintSlide(&js, s, "json"))
	var decoded Slide
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, s, decoded)

	var y bytes.Buffer
	require.NoError(t, PrintSlide(&y, s, "yaml"))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(y.Bytes(), &fromYAML))
	assert.Equal(t, "A/B/slide1.svs", fromYAML["path"])
	assert.Equal(t, 9, fromYAML["max_zoom_level"])

	assert.Error(t, PrintSlide(&bytes.Buffer{}, s, "xml"))
}

func TestPrintLevelsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintLevels(&buf, sampleSlide().Levels, "csv"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "zoom", rows[0][0])
	assert.Equal(t, []string{"9", "0", "0", "391", "313", "122383", "0"}, rows[2])
}

func TestPrintInventory(t *testing.T) {
	records := []inventory.Record{
		{Path: "A/one.svs", Extension: ".svs", Width: 100000, Height: 80000, Magnification: 40},
		{Path: "A/two.svs", Extension: ".svs", Error: "pma: slide not found"},
	}

	var text bytes.Buffer
	require.NoError(t, PrintInventory(&text, records, "text"))
	assert.Contains(t, text.String(), "Slides:      2")
	assert.Contains(t, text.String(), "Failed:      1")
	assert.Contains(t, text.String(), "40x")

	var buf bytes.Buffer
	require.NoError(t, PrintInventory(&buf, records, "csv"))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "pma: slide not found", rows[2][12])

	var js bytes.Buffer
	require.NoError(t, PrintInventory(&js, records, "json"))
	var summary inventory.Summary
	require.NoError(t, json.Unmarshal(js.Bytes(), &summary))
	assert.Equal(t, 2, summary.Slides)
}
