package mailbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nhle/classfeed/internal/source"
)

// messageFetcher is the part of IMAPClient the adapter needs.
type messageFetcher interface {
	FetchMessages(ctx context.Context, limit int) ([]Message, error)
}

// Adapter implements source.GlobalSource by reading site-wide
// announcements from an IMAP folder.
type Adapter struct {
	fetcher messageFetcher
	limit   int
}

var _ source.GlobalSource = (*Adapter)(nil)

// NewAdapter creates a new mailbox source adapter.
func NewAdapter(
	host, port, username, password, folder string,
	useTLS bool,
	limit int,
) *Adapter {
	return &Adapter{
		fetcher: NewIMAPClient(host, port, username, password, folder, useTLS),
		limit:   limit,
	}
}

// Type returns the source type identifier for the mailbox.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeMailbox
}

// FetchGlobal returns each message in the folder as a raw announcement.
func (a *Adapter) FetchGlobal(ctx context.Context) ([]source.RawItem, error) {
	messages, err := a.fetcher.FetchMessages(ctx, a.limit)
	if err != nil {
		return nil, fmt.Errorf("fetching mailbox announcements: %w", err)
	}

	items := make([]source.RawItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, messageToRawItem(m))
	}
	return items, nil
}

// messageToRawItem maps a mail onto the tolerant raw shape. The Message-ID
// is preferred as identity because UIDs change when a folder is rebuilt.
func messageToRawItem(m Message) source.RawItem {
	item := source.RawItem{
		Subject: m.Envelope.Subject,
		Body:    strings.TrimSpace(m.TextBody),
	}

	switch {
	case m.Envelope.MessageID != "":
		item.ID = source.Scalar(sanitizeID(strings.Trim(m.Envelope.MessageID, "<>")))
	case m.Envelope.UID != 0:
		item.ID = source.Scalar(fmt.Sprintf("uid-%d", m.Envelope.UID))
	}

	if item.Body == "" && m.HTMLBody != "" {
		item.Body = stripHTML(m.HTMLBody)
	}

	if !m.Envelope.Date.IsZero() {
		item.CreatedAt = source.Scalar(m.Envelope.Date.UTC().Format(time.RFC3339))
	}

	return item
}

var idUnsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._@-]`)

// sanitizeID replaces characters that are not safe in a notification ID.
func sanitizeID(s string) string {
	return idUnsafeChars.ReplaceAllString(s, "_")
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
