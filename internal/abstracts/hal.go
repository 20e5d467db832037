package abstracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/util"
)

// DefaultHALURL is the public HAL search endpoint
const DefaultHALURL = "https://api.archives-ouvertes.fr/search/"

// HALRecord holds the abstracts HAL knows for one document
type HALRecord struct {
	All  []string // abstract_s, every language
	Main string   // {lang}_abstract_s, empty when absent
}

// HALClient looks up abstracts in the HAL archive. Abstracts returns every
// abstract except the main-language one, which stays in the document.
type HALClient struct {
	fetcher  *Fetcher
	baseURL  string
	mainLang string
}

// NewHALClient creates a client for the search endpoint at baseURL
func NewHALClient(fetcher *Fetcher, baseURL, mainLang string) *HALClient {
	if baseURL == "" {
		baseURL = DefaultHALURL
	}
	return &HALClient{
		fetcher:  fetcher,
		baseURL:  baseURL,
		mainLang: mainLang,
	}
}

type halResponse struct {
	Response struct {
		NumFound int                          `json:"numFound"`
		Docs     []map[string]json.RawMessage `json:"docs"`
	} `json:"response"`
}

// Record queries HAL for docID
func (c *HALClient) Record(ctx context.Context, docID string) (*HALRecord, error) {
	mainField := c.mainLang + "_abstract_s"
	params := url.Values{}
	params.Set("q", "docid:"+docID)
	params.Set("wt", "json")
	params.Set("fl", "abstract_s,"+mainField)

	body, err := c.fetcher.Get(ctx, c.baseURL, params)
	if err != nil {
		if permanent(err) {
			// retrying on resume would fail the same way
			return nil, fmt.Errorf("%w: hal %s: %w", model.ErrMalformedInput, docID, err)
		}
		return nil, fmt.Errorf("hal %s: %w", docID, err)
	}

	var resp halResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: hal %s: decode response: %v", model.ErrMalformedInput, docID, err)
	}
	if len(resp.Response.Docs) == 0 {
		return nil, fmt.Errorf("%w: hal has no record for %s", model.ErrMalformedInput, docID)
	}

	doc := resp.Response.Docs[0]
	rec := &HALRecord{}
	if raw, ok := doc["abstract_s"]; ok {
		if err := json.Unmarshal(raw, &rec.All); err != nil {
			return nil, fmt.Errorf("%w: hal %s: abstract_s: %v", model.ErrMalformedInput, docID, err)
		}
	}
	if raw, ok := doc[mainField]; ok {
		var main []string
		if err := json.Unmarshal(raw, &main); err != nil {
			return nil, fmt.Errorf("%w: hal %s: %s: %v", model.ErrMalformedInput, docID, mainField, err)
		}
		if len(main) > 0 {
			rec.Main = main[0]
		}
	}
	return rec, nil
}

// Abstracts returns the non-main abstracts of docID with newlines removed.
// A document with a single abstract yields none.
func (c *HALClient) Abstracts(ctx context.Context, docID string) ([]string, error) {
	rec, err := c.Record(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(rec.All) <= 1 {
		return nil, nil
	}
	if rec.Main == "" {
		return nil, fmt.Errorf("%w: hal %s: no %s abstract to keep", model.ErrMalformedInput, docID, c.mainLang)
	}

	others := make([]string, 0, len(rec.All)-1)
	for _, a := range rec.All {
		if a != rec.Main {
			others = append(others, a)
		}
	}
	return cleanAbstracts(others), nil
}

// permanent reports whether a fetch error will recur on every attempt: a
// non-retryable HTTP status or a robots.txt denial
func permanent(err error) bool {
	if errors.Is(err, util.ErrDisallowed) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.Retryable()
}
