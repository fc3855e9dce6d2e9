package cities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGeoJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.geojson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {
					"GeografischerName_GEN": "Berlin",
					"Gemeindeschlüssel_AGS": "11000000",
					"Einwohnerzahl_EWZ": 3664088
				},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[13.1, 52.3], [13.8, 52.3], [13.8, 52.7], [13.1, 52.7], [13.1, 52.3]]]
				}
			},
			{
				"type": "Feature",
				"properties": {
					"GeografischerName_GEN": "Bremen",
					"Gemeindeschlüssel_AGS": 4011000,
					"Einwohnerzahl_EWZ": 566573
				},
				"geometry": {
					"type": "MultiPolygon",
					"coordinates": [
						[[[8.5, 53.0], [9.0, 53.0], [9.0, 53.2], [8.5, 53.0]]],
						[[[8.5, 53.5], [8.7, 53.5], [8.7, 53.6], [8.5, 53.5]]]
					]
				}
			}
		]
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	berlin := loaded[0]
	assert.Equal(t, "Berlin", berlin.Name)
	assert.Equal(t, "11000", berlin.DistrictKey)
	assert.Equal(t, 3664088, berlin.Population)
	poly, ok := berlin.Boundary.(geom.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	assert.Equal(t, geom.Point{X: 13.1, Y: 52.3}, poly[0][0])

	bremen := loaded[1]
	assert.Equal(t, "Bremen", bremen.Name)
	assert.Equal(t, "40110", bremen.DistrictKey)
	mp, ok := bremen.Boundary.(geom.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not json",
			content: "never a feature collection",
		},
		{
			name:    "no features",
			content: `{"type": "FeatureCollection", "features": []}`,
		},
		{
			name: "missing name",
			content: `{"features": [{
				"properties": {"Gemeindeschlüssel_AGS": "11000000"},
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}
			}]}`,
		},
		{
			name: "unsupported geometry",
			content: `{"features": [{
				"properties": {"GeografischerName_GEN": "Berlin"},
				"geometry": {"type": "Point", "coordinates": [13.4, 52.5]}
			}]}`,
		},
		{
			name: "degenerate ring",
			content: `{"features": [{
				"properties": {"GeografischerName_GEN": "Berlin"},
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,1]]]}
			}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeGeoJSON(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.geojson"))
	assert.Error(t, err)
}

func TestDistrictKey(t *testing.T) {
	assert.Equal(t, "11000", districtKey("11000000"))
	assert.Equal(t, "04011", districtKey("04011"))
	assert.Equal(t, "123", districtKey("123"))
}
