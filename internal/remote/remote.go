// Package remote opens an http(s):// URL as a sequential byte source for
// the CLI's compress/decompress subcommands.
//
// This is a deliberately narrowed adaptation of ranger.Reader: the teacher's
// version issues Range-header GETs keyed by an arbitrary offset to satisfy
// io.ReaderAt, including following redirects onto the probed Range URL.
// Random-access decompression is explicitly out of scope here, so Open
// drops ReadAt, offsets, and Range headers entirely and returns a plain
// sequential io.ReadCloser over a single whole-body GET, following
// redirects the way http.Client already does by default.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Open issues a GET for uri and returns its body as a sequential reader.
// The caller must Close the returned reader. rt is the RoundTripper to use;
// passing nil selects http.DefaultTransport.
func Open(ctx context.Context, uri string, rt http.RoundTripper) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Transport: rt}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("remote: %q returned status %d", uri, res.StatusCode)
	}
	return res.Body, nil
}
