package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/events>; rel="events"`,
		`</api/v1/sources>; rel="sources"`,
		`</api/cache/stats>; rel="cache"`,
		`</openapi.json>; rel="service-desc"`,
		`</docs>; rel="service-doc"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/events>; rel="events"`,
	},
	"/api/events": {
		`</api/events/geojson>; rel="alternate"`,
		`</api/events-range>; rel="range"`,
		`</api/v1/sources>; rel="sources"`,
	},
	"/api/events/geojson": {
		`</api/events>; rel="alternate"`,
		`</api/v1/sources>; rel="sources"`,
	},
	"/api/events-range": {
		`</api/events>; rel="events"`,
	},
	"/api/v1/sources": {
		`</api/events>; rel="events"`,
	},
	"/api/cache/stats": {
		`</api/cache/clear>; rel="clear"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}
		return v, nil
	}
}

// RootLinks returns the Link headers of the entry point, for use by non-Huma handlers.
func RootLinks() []string {
	return links["/health"]
}
