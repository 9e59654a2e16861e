package service

import (
	"encoding/json"

	"github.com/knoguchi/kbsearch/internal/retrieval"
)

// DatasetReport is the outcome of one dataset in one run. Exactly one of Results (with
// Reranked false), RerankedResults (with Reranked true) or Error describes the outcome.
type DatasetReport struct {
	DatasetID       string
	DatasetName     string
	Query           string
	Results         []retrieval.Result
	RerankedResults []retrieval.RerankedResult
	Reranked        bool
	RerankModel     string
	Error           *retrieval.Error
}

// reportView is the serialized form shared by JSON and YAML output.
type reportView struct {
	Query       string           `json:"query" yaml:"query"`
	DatasetID   string           `json:"dataset_id" yaml:"dataset_id"`
	DatasetName string           `json:"dataset_name,omitempty" yaml:"dataset_name,omitempty"`
	Results     any              `json:"results,omitempty" yaml:"results,omitempty"`
	Reranked    bool             `json:"reranked" yaml:"reranked"`
	RerankModel string           `json:"rerank_model,omitempty" yaml:"rerank_model,omitempty"`
	Error       *retrieval.Error `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r DatasetReport) view() reportView {
	v := reportView{
		Query:       r.Query,
		DatasetID:   r.DatasetID,
		DatasetName: r.DatasetName,
		Reranked:    r.Reranked,
		RerankModel: r.RerankModel,
		Error:       r.Error,
	}
	switch {
	case r.Error != nil:
	case r.Reranked:
		v.Results = nonNil(r.RerankedResults)
	default:
		v.Results = nonNil(r.Results)
	}
	return v
}

// MarshalJSON emits the ranked results in place of the plain ones when reranked, and
// the error in place of any results when retrieval failed.
func (r DatasetReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML mirrors MarshalJSON for gopkg.in/yaml.v3.
func (r DatasetReport) MarshalYAML() (any, error) {
	return r.view(), nil
}

// Len returns the number of results shown for the dataset.
func (r DatasetReport) Len() int {
	if r.Reranked {
		return len(r.RerankedResults)
	}
	return len(r.Results)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// RunReport groups the reports of one run.
type RunReport struct {
	RunID   string          `json:"run_id" yaml:"run_id"`
	Query   string          `json:"query" yaml:"query"`
	Reports []DatasetReport `json:"reports" yaml:"reports"`
}
