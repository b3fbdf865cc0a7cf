// Package export writes messages and their attachments to local files:
// RFC 5322 .eml files, single attachments and zip archives.
package export

import (
	"context"
	"io"
)

// Fetcher streams an attachment's content into w and returns the file name
// the service reported for it. *gateway.Client satisfies it.
type Fetcher interface {
	FetchAttachment(ctx context.Context, id int64, w io.Writer) (string, error)
}
