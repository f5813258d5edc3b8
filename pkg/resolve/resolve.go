// Package resolve follows the redirect chain of every unresolved URL
// recorded in the store, recording the terminal URL each chain reaches.
package resolve

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kittclouds/coordnet/internal/store"
)

// Status classifies how resolution of a URL went.
type Status string

const (
	StatusOK               Status = "ok"
	StatusTimeout          Status = "Timeout"
	StatusTooManyRedirects Status = "TooManyRedirects"
	StatusConnectionError  Status = "ConnectionError"
	StatusSSLError         Status = "SSLError"
	StatusOtherError       Status = "OtherError"
)

// Result is the outcome of resolving one URL.
type Result struct {
	URL            string
	ResolvedURL    string
	SSLVerified    bool
	ResolvedStatus Status
}

// errTooManyRedirects is returned from a request's CheckRedirect hook once
// MaxRedirects is exceeded, so it can be classified distinctly from a
// generic transport error.
var errTooManyRedirects = errors.New("resolve: too many redirects")

// Options configures a Resolver.
type Options struct {
	MaxRedirects int           // default 5
	Timeout      time.Duration // default 15s
	FromHeader   string        // optional contact header for the From request header
	Concurrency  int           // max in-flight requests, default 50
	RatePerSec   int           // request issuance rate, default 25
	Burst        int           // issuance burst size, default 25
}

func (o Options) withDefaults() Options {
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 50
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = 25
	}
	if o.Burst <= 0 {
		o.Burst = 25
	}
	return o
}

// Resolver resolves URLs to the end of their redirect chain.
type Resolver struct {
	opts    Options
	limiter *rate.Limiter
	sem     chan struct{}
}

// New returns a Resolver configured by opts (zero value uses sensible
// defaults, matching the original implementation's constants).
func New(opts Options) *Resolver {
	opts = opts.withDefaults()
	return &Resolver{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		sem:     make(chan struct{}, opts.Concurrency),
	}
}

// ResolveOne follows target's redirect chain, first verifying TLS
// certificates and, only on an SSL error, retrying once with verification
// disabled.
func (r *Resolver) ResolveOne(ctx context.Context, target string) Result {
	res, sslErr := r.resolveWithClient(ctx, target, true)
	if sslErr {
		return r.mustResolveWithClient(ctx, target, false)
	}
	return res
}

func (r *Resolver) mustResolveWithClient(ctx context.Context, target string, verify bool) Result {
	res, _ := r.resolveWithClient(ctx, target, verify)
	return res
}

func (r *Resolver) resolveWithClient(ctx context.Context, target string, verify bool) (Result, bool) {
	client := r.newClient(verify)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return Result{URL: target, ResolvedURL: target, SSLVerified: verify, ResolvedStatus: StatusOtherError}, false
	}
	if r.opts.FromHeader != "" {
		req.Header.Set("From", r.opts.FromHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		status, isSSL := classify(err)
		return Result{URL: target, ResolvedURL: target, SSLVerified: verify, ResolvedStatus: status}, isSSL && verify
	}
	defer resp.Body.Close()

	return Result{URL: target, ResolvedURL: resp.Request.URL.String(), SSLVerified: verify, ResolvedStatus: StatusOK}, false
}

func (r *Resolver) newClient(verify bool) *http.Client {
	transport := &http.Transport{}
	if !verify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	redirects := 0
	return &http.Client{
		Transport: transport,
		Timeout:   r.opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirects++
			if redirects > r.opts.MaxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}

// classify maps a transport error to a Status, along with whether it
// should trigger an unverified-SSL retry.
func classify(err error) (Status, bool) {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if errors.Is(urlErr.Err, errTooManyRedirects) {
			return StatusTooManyRedirects, false
		}
		if urlErr.Timeout() {
			return StatusTimeout, false
		}

		var certErr x509.UnknownAuthorityError
		var hostnameErr x509.HostnameError
		var tlsErr tls.RecordHeaderError
		if errors.As(urlErr.Err, &certErr) || errors.As(urlErr.Err, &hostnameErr) || errors.As(urlErr.Err, &tlsErr) {
			return StatusSSLError, true
		}

		if errors.Is(urlErr.Err, syscall.ECONNREFUSED) || errors.Is(urlErr.Err, syscall.ECONNRESET) {
			return StatusConnectionError, false
		}
	}
	return StatusOtherError, false
}

// ResolveAll resolves every URL currently in the store's unresolved
// worklist, persisting results in batches as they complete and rebuilding
// resolved_message_url once every URL has been processed.
func (r *Resolver) ResolveAll(ctx context.Context, s *store.Store, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	runID := uuid.New().String()

	urls, err := store.UnresolvedURLs(ctx, s.DB())
	if err != nil {
		return fmt.Errorf("resolve: list unresolved urls: %w", err)
	}
	logger.Infof("resolve run %s: resolving %d urls", runID, len(urls))

	results := make(chan Result, r.opts.Concurrency)
	var wg sync.WaitGroup

	// submitted closes once the loop below has issued every wg.Add it will
	// ever issue, whether by exhausting urls or returning early on
	// cancellation; the closer must not call wg.Wait until then, or it can
	// observe a zero counter before the first Add and close results early.
	submitted := make(chan struct{})

	go func() {
		defer close(submitted)
		for _, u := range urls {
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}

			select {
			case r.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				defer func() { <-r.sem }()
				results <- r.ResolveOne(ctx, target)
			}(u)
		}
	}()

	go func() {
		<-submitted
		wg.Wait()
		close(results)
	}()

	resolved := 0
	batch := make([]Result, 0, 1000)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			for _, res := range batch {
				resolvedURL := res.ResolvedURL
				verified := res.SSLVerified
				status := string(res.ResolvedStatus)
				if err := store.UpsertResolvedURL(ctx, tx, store.ResolvedURL{
					URL: res.URL, ResolvedURL: &resolvedURL, SSLVerified: &verified, ResolvedStatus: &status,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		batch = batch[:0]
		return err
	}

	for res := range results {
		batch = append(batch, res)
		resolved++
		if len(batch) >= 1000 {
			if err := flush(); err != nil {
				return fmt.Errorf("resolve: persist batch: %w", err)
			}
			logger.Infof("resolve run %s: resolved %d of %d urls", runID, resolved, len(urls))
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("resolve: persist final batch: %w", err)
	}

	logger.Info("rebuilding resolved message url table")
	return store.RebuildResolvedMessageURL(ctx, s.DB())
}
