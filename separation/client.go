package separation

// Client for the external source-separation service. The model inference
// itself is opaque to this system: we upload a mixed recording and receive
// isolated vocal and accompaniment waveforms back.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client communicates with the vocal separation service.
type Client struct {
	serviceURL string
	client     *http.Client
}

// Response carries the isolated waveforms returned by the service.
type Response struct {
	Vocals        []float64 `json:"vocals"`
	Accompaniment []float64 `json:"accompaniment,omitempty"`
	SampleRate    int       `json:"sampleRate"`
}

// NewClient creates a separation client. Separation of a full track can take
// a while, hence the generous timeout.
func NewClient(serviceURL string) *Client {
	if serviceURL == "" {
		serviceURL = "http://localhost:5003"
	}
	return &Client{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// HealthCheck verifies the separation service is reachable.
func (c *Client) HealthCheck() error {
	resp, err := c.client.Get(c.serviceURL + "/health")
	if err != nil {
		return fmt.Errorf("separation service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("separation service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// SeparateFile uploads an audio file and returns the isolated waveforms.
func (c *Client) SeparateFile(audioPath string) (*Response, error) {
	file, err := os.Open(filepath.Clean(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequest("POST", c.serviceURL+"/separate", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("separation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("separation service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var sepResp Response
	if err := json.NewDecoder(resp.Body).Decode(&sepResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(sepResp.Vocals) == 0 {
		return nil, fmt.Errorf("received empty vocal waveform")
	}
	return &sepResp, nil
}
