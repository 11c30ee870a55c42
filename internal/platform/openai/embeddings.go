package openai

import (
	"context"
	"fmt"
	"strings"
)

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}
	req := embeddingsRequest{Model: c.embedModel, Input: clean, Dimensions: c.embedDims}
	ep := endpoint{baseURL: c.embedBaseURL, apiKey: c.embedAPIKey}

	var resp embeddingsResponse
	if err := c.do(ctx, ep, "/v1/embeddings", c.embedModel, req, &resp); err != nil {
		return nil, err
	}
	out, missing := placeEmbeddings(resp, len(clean))
	if missing {
		return nil, fmt.Errorf("openai embeddings missing indices: requested=%d returned=%d model=%s", len(clean), len(resp.Data), c.embedModel)
	}
	return out, nil
}

// placeEmbeddings orders vectors by their reported index, falling back to
// response order when indices are unusable.
func placeEmbeddings(resp embeddingsResponse, n int) ([][]float32, bool) {
	out := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < n {
			out[d.Index] = toFloat32(d.Embedding)
		}
	}
	if hasMissingEmbeddings(out) && len(resp.Data) == n {
		for i := range out {
			if len(out[i]) == 0 {
				out[i] = toFloat32(resp.Data[i].Embedding)
			}
		}
	}
	return out, hasMissingEmbeddings(out)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func hasMissingEmbeddings(v [][]float32) bool {
	for i := range v {
		if len(v[i]) == 0 {
			return true
		}
	}
	return false
}
