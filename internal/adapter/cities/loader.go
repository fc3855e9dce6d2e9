// Package cities loads the city boundary GeoJSON used for zonal
// statistics.
package cities

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ctessum/geom"

	"github.com/cleanskies/no2-data-prep/internal/domain"
)

// Load reads a GeoJSON feature collection of German city boundaries. The
// district key is the first five digits of the municipality key (AGS),
// which identifies the Landkreis the incidence table reports on.
func Load(path string) ([]domain.City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode cities geojson: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("cities geojson %s has no features", path)
	}

	out := make([]domain.City, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := f.Properties.Name
		if name == "" {
			return nil, fmt.Errorf("feature %d has no city name", i)
		}
		boundary, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("city %q: %w", name, err)
		}
		out = append(out, domain.City{
			Name:        name,
			DistrictKey: districtKey(string(f.Properties.AGS)),
			Population:  int(f.Properties.Population),
			Boundary:    boundary,
		})
	}
	return out, nil
}

// districtKey truncates a municipality key to its five-digit district
// prefix.
func districtKey(ags string) string {
	if len(ags) > 5 {
		return ags[:5]
	}
	return ags
}

func decodeGeometry(g geometryJSON) (geom.Polygonal, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decode polygon coordinates: %w", err)
		}
		return toPolygon(rings)
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("decode multipolygon coordinates: %w", err)
		}
		mp := make(geom.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			p, err := toPolygon(rings)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func toPolygon(rings [][][]float64) (geom.Polygon, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("polygon has no rings")
	}
	p := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < 3 {
			return nil, fmt.Errorf("polygon ring has %d points, want at least 3", len(ring))
		}
		pts := make([]geom.Point, 0, len(ring))
		for _, coord := range ring {
			if len(coord) < 2 {
				return nil, fmt.Errorf("coordinate has %d values, want at least 2", len(coord))
			}
			pts = append(pts, geom.Point{X: coord[0], Y: coord[1]})
		}
		p = append(p, pts)
	}
	return p, nil
}

// GeoJSON wire types. The municipality key appears both as a string and
// as a bare number in published datasets, so it gets a tolerant decoder.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties   `json:"properties"`
	Geometry   geometryJSON `json:"geometry"`
}

type properties struct {
	Name       string     `json:"GeografischerName_GEN"`
	AGS        flexString `json:"Gemeindeschlüssel_AGS"`
	Population float64    `json:"Einwohnerzahl_EWZ"`
}

type geometryJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}
