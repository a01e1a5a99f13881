package service

import "context"

// Upload stores the files attached to a request on the media host and
// returns their URLs. Services run it only after the request has been
// validated, so rejected requests leave nothing behind. A nil Upload means
// no files were attached.
type Upload func(ctx context.Context) []string

// Files wraps URLs that are already stored.
func Files(urls ...string) Upload {
	return func(context.Context) []string { return urls }
}

func (u Upload) all(ctx context.Context) []string {
	if u == nil {
		return []string{}
	}
	urls := u(ctx)
	if urls == nil {
		return []string{}
	}
	return urls
}

func (u Upload) first(ctx context.Context) *string {
	urls := u.all(ctx)
	if len(urls) == 0 {
		return nil
	}
	return &urls[0]
}
