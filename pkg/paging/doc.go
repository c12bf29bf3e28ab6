// Package paging implements the MDS next-link pagination protocol.
//
// MDS Provider API responses carry an opaque links.next URL instead of a
// numeric page count, so traversal is strictly sequential: fetch the start
// URL with query parameters, then follow each page's next link verbatim
// until a page is empty or carries no link.
//
// Example usage:
//
//	walker := paging.NewWalker(session, "trips", url, params, true)
//	for walker.Next(ctx) {
//		page := walker.Page()
//		// consume page.Items("trips")
//	}
//	if err := walker.Err(); err != nil {
//		// transport or malformed-first-page failure
//	}
//
// The walker:
//   - Emits only non-empty pages (a page with no item records ends the walk)
//   - Never issues a request after the consumer stops calling Next
//   - Fetches at most one page when follow is false
//   - Surfaces non-success statuses as *TransportError with the response
//     status, headers, and body captured for diagnostics
package paging
