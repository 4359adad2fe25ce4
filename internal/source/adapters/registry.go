package adapters

import (
	"time"

	"oppradar/internal/browser"
	"oppradar/internal/source"
)

// Deps is what the adapter roster needs at construction time. Each adapter
// gets its own HTTP client; the browser pool is the one shared resource.
type Deps struct {
	// Pool drives the headless family. Nil degrades those adapters to plain
	// HTTP fetches, which works for the sources without hard JS
	// requirements and fails loudly on the rest.
	Pool *browser.Pool
	// RequestTimeout bounds each outbound request. Zero means the client
	// default.
	RequestTimeout time.Duration
}

// BuildRegistry registers the full source roster.
func BuildRegistry(deps Deps) (*source.Registry, error) {
	client := func(name string) *source.Client {
		return source.NewClient(name, deps.RequestTimeout)
	}
	fetcher := func(name string) PageFetcher {
		if deps.Pool != nil {
			return NewBrowserFetcher(deps.Pool, name)
		}
		return NewClientFetcher(client(name))
	}

	roster := []source.Adapter{
		// Headless family.
		NewDevpost(fetcher("devpost"), ""),
		NewMLH(fetcher("mlh"), ""),
		NewETHGlobal(fetcher("ethglobal"), ""),
		NewHackerEarth(fetcher("hackerearth"), ""),
		NewKaggle(fetcher("kaggle"), ""),
		NewHackerOne(fetcher("hackerone"), ""),
		NewAccelerators(fetcher("accelerators"), ""),
		// HTTP family.
		NewGrantsGov(client("grants_gov"), ""),
		NewSBIR(client("sbir"), ""),
		NewEUHorizon(client("eu_horizon"), ""),
		NewInnovateUK(client("innovate_uk"), ""),
		NewOSSGrants(client("opensource_grants"), ""),
	}

	reg := source.NewRegistry()
	for _, a := range roster {
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
