// Package feed implements the RSS proxy endpoint.
//
// A Fetcher performs upstream GET requests over one pooled *http.Client that
// is created at process start and passed in explicitly:
//
//	client := feed.NewHTTPClient(10*time.Second, 4)
//	fetcher := feed.NewFetcher(client)
//	mux.Handle("/rss", feed.NewHandler(fetcher, feed.DefaultURL))
//
// # Error Handling
//
// Every upstream failure is returned as a *FetchError whose Kind tells DNS
// failures, refused connections, timeouts, non-2xx responses and oversized
// bodies apart:
//
//	body, _, err := fetcher.Fetch(ctx, url)
//	var fe *feed.FetchError
//	if errors.As(err, &fe) && fe.Kind == feed.KindHTTPStatus {
//	    log.Printf("upstream returned %d", fe.StatusCode)
//	}
//
// The HTTP handler maps failures to 502 Bad Gateway (504 for timeouts) and
// never includes upstream details in the response body.
package feed
