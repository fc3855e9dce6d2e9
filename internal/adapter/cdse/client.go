// Package cdse downloads daily NO2 rasters from the Copernicus Data Space
// Ecosystem Sentinel Hub Process API.
package cdse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/cleanskies/no2-data-prep/internal/config"
	"github.com/cleanskies/no2-data-prep/internal/observability"
)

// evalscript extracts the tropospheric NO2 column density band and maps
// masked pixels to the nodata sentinel shared with the raster store.
const evalscript = `//VERSION=3
function setup() {
  return {
    input: ["NO2", "dataMask"],
    output: { bands: 1, sampleType: "FLOAT32" },
  };
}
function evaluatePixel(sample) {
  if (sample.dataMask === 0) {
    return [-9999];
  }
  return [sample.NO2];
}`

const crsWGS84 = "http://www.opengis.net/def/crs/EPSG/0/4326"

// Client talks to the Sentinel Hub Process API with OAuth2
// client-credentials authentication.
type Client struct {
	httpClient *http.Client
	baseURL    string
	bbox       [4]float64
	width      int
	height     int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient builds a Process API client from the CDSE configuration. The
// returned client refreshes its access token automatically.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	if err := cfg.ValidateCDSE(); err != nil {
		return nil, err
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.CDSEClientID,
		ClientSecret: cfg.CDSEClientSecret,
		TokenURL:     cfg.CDSETokenURL,
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = cfg.CDSETimeout

	width, height := rasterSize(cfg.AOIBBox, cfg.ResolutionX, cfg.ResolutionY)
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.CDSEBaseURL,
		bbox:       cfg.AOIBBox,
		width:      width,
		height:     height,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// DownloadDay requests one day's NO2 composite over the configured area
// and returns the raw GeoTIFF bytes.
func (c *Client) DownloadDay(ctx context.Context, day time.Time) ([]byte, error) {
	reqBody := processRequest{
		Input: processInput{
			Bounds: processBounds{
				BBox:       c.bbox[:],
				Properties: crsProperties{CRS: crsWGS84},
			},
			Data: []processData{{
				Type: "sentinel-5p-l2",
				DataFilter: dataFilter{
					TimeRange: timeRange{
						From: day.Format("2006-01-02") + "T00:00:00Z",
						To:   day.Format("2006-01-02") + "T23:59:59Z",
					},
				},
			}},
		},
		Output: processOutput{
			Width:  c.width,
			Height: c.height,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     responseFormat{Type: "image/tiff"},
			}},
		},
		Evalscript: evalscript,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/process", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/tiff")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.DownloadRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("process request for %s: %w", day.Format("2006-01-02"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.DownloadRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("process API error: status %d: %s", resp.StatusCode, body)
	}

	tiff, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.DownloadRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read process response: %w", err)
	}
	c.metrics.DownloadRequests.WithLabelValues("success").Inc()
	return tiff, nil
}

// rasterSize converts the WGS84 bounding box and a metric resolution into
// output pixel dimensions, using the meridian arc and the parallel arc at
// the box's mid latitude.
func rasterSize(bbox [4]float64, resX, resY float64) (int, int) {
	midLat := (bbox[1] + bbox[3]) / 2 * math.Pi / 180
	widthMeters := (bbox[2] - bbox[0]) * 111320 * math.Cos(midLat)
	heightMeters := (bbox[3] - bbox[1]) * 110540

	width := int(math.Max(1, math.Round(widthMeters/resX)))
	height := int(math.Max(1, math.Round(heightMeters/resY)))
	return width, height
}

// Process API request types.

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox       []float64     `json:"bbox"`
	Properties crsProperties `json:"properties"`
}

type crsProperties struct {
	CRS string `json:"crs"`
}

type processData struct {
	Type       string     `json:"type"`
	DataFilter dataFilter `json:"dataFilter"`
}

type dataFilter struct {
	TimeRange timeRange `json:"timeRange"`
}

type timeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string         `json:"identifier"`
	Format     responseFormat `json:"format"`
}

type responseFormat struct {
	Type string `json:"type"`
}
