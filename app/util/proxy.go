package util

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/samber/oops"
)

// ProxyTransport sends each request through the next proxy of the list.
type ProxyTransport struct {
	mu         sync.Mutex
	current    int
	transports []*http.Transport
	proxies    []*url.URL
}

func baseTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxIdleConnsPerHost = 100

	return transport
}

// NewRotatingProxyTransport returns a plain transport when urls is empty.
func NewRotatingProxyTransport(urls []string) (http.RoundTripper, error) {
	if len(urls) == 0 {
		return baseTransport(), nil
	}

	result := &ProxyTransport{}
	for _, raw := range urls {
		proxy, err := url.Parse(raw)
		if err != nil {
			return nil, oops.
				With("kind", KindConfig).
				Errorf("error parsing proxy URL %s: %w", raw, err)
		}
		if proxy.Host == "" {
			return nil, oops.
				With("kind", KindConfig).
				Errorf("proxy URL %s has no host", raw)
		}

		transport := baseTransport()
		transport.Proxy = http.ProxyURL(proxy)

		result.proxies = append(result.proxies, proxy)
		result.transports = append(result.transports, transport)
	}

	return result, nil
}

func (p *ProxyTransport) next() *http.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	transport := p.transports[p.current]
	p.current = (p.current + 1) % len(p.transports)

	return transport
}

func (p *ProxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return p.next().RoundTrip(req)
}

func (p *ProxyTransport) Proxies() []*url.URL {
	return p.proxies
}
