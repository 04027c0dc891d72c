package websearch

import (
	"context"
	"errors"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher performs a web search for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	SerperProvider Provider = "serper"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

func NewSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case TavilyProvider:
		return &Tavily{APIKey: apiKey}, nil
	case SerperProvider:
		return &Serper{APIKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
