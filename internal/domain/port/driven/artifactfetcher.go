package driven

import "context"

// ArtifactFetcher defines the driven port for retrieving report PDF bytes.
// A non-2xx status is not an error at this boundary: the caller decides
// whether to retry on a future run.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, url string) (status int, body []byte, err error)
}
