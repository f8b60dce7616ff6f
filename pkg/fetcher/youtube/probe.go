package youtube

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	util_http "github.com/ValerySidorin/ytgrab/pkg/util/http"
)

var ProbeDomains = []string{
	"https://www.youtube.com",
	"https://youtube.com",
	"https://i.ytimg.com",
	"https://www.googleapis.com",
}

// Prober checks whether the extractor's upstream hosts answer at all.
type Prober struct {
	httpClient *retryablehttp.Client
	domains    []string
	log        log.Logger
}

func NewProber(domains []string, logger log.Logger) *Prober {
	c := NewHTTPClient(0, logger)
	c.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Prober{
		httpClient: c,
		domains:    domains,
		log:        logger,
	}
}

// Probe requests every domain concurrently and reports which ones answered
// with a reachable status.
func (p *Prober) Probe(ctx context.Context) map[string]bool {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = make(map[string]bool, len(p.domains))
	)

	for _, d := range p.domains {
		wg.Add(1)
		go func(domain string) {
			defer wg.Done()

			ok, err := p.probe(ctx, domain)
			if err != nil {
				_ = level.Warn(p.log).Log("msg", "domain unreachable", "domain", domain, "err", err)
			}

			mu.Lock()
			res[domain] = ok
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	return res
}

func (p *Prober) probe(ctx context.Context, domain string) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, domain, nil)
	if err != nil {
		return false, errors.Wrap(err, "probe create request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "probe request")
	}
	defer resp.Body.Close()

	return util_http.IsReachableStatusCode(resp), nil
}
