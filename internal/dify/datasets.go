package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/knoguchi/kbsearch/internal/repository"
)

type listDatasetsResponse struct {
	Data *[]*repository.Dataset `json:"data"`
}

// ListDatasets fetches one page of datasets, including those the key's owner cannot edit.
func (c *Client) ListDatasets(ctx context.Context, limit int) ([]*repository.Dataset, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	endpoint := "/datasets?limit=" + strconv.Itoa(limit) + "&include_all=true"
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("list datasets: HTTP error %d: %s", resp.StatusCode, preview(body))
	}

	var parsed listDatasetsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("list datasets: failed to decode response: %w", err)
	}
	if parsed.Data == nil {
		return nil, fmt.Errorf("list datasets: expected 'data' key in API response")
	}

	now := time.Now().UTC()
	datasets := make([]*repository.Dataset, 0, len(*parsed.Data))
	for _, ds := range *parsed.Data {
		if ds == nil || ds.ID == "" {
			continue
		}
		ds.FetchedAt = now
		datasets = append(datasets, ds)
	}
	return datasets, nil
}
