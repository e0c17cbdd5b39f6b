package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/source"
)

type fakeFetcher struct {
	messages  []Message
	err       error
	lastLimit int
}

func (f *fakeFetcher) FetchMessages(_ context.Context, limit int) ([]Message, error) {
	f.lastLimit = limit
	return f.messages, f.err
}

func TestFetchGlobalMapsMessages(t *testing.T) {
	date := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	f := &fakeFetcher{messages: []Message{
		{
			Envelope: Envelope{MessageID: "<abc/1@lms.edu>", Subject: "Campus closed", Date: date, UID: 4},
			TextBody: "  Snow day.\n",
		},
		{
			Envelope: Envelope{UID: 9, Subject: "Library hours"},
			HTMLBody: "<p>Open &amp; staffed</p>",
		},
	}}
	a := &Adapter{fetcher: f, limit: 20}

	items, err := a.FetchGlobal(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 20, f.lastLimit)

	assert.Equal(t, "abc_1@lms.edu", items[0].ID.String())
	assert.Equal(t, "Campus closed", items[0].Subject)
	assert.Equal(t, "Snow day.", items[0].Body)
	assert.Equal(t, "2024-03-01T08:30:00Z", items[0].CreatedAt.String())

	assert.Equal(t, "uid-9", items[1].ID.String())
	assert.Equal(t, "Open & staffed", items[1].Body)
	assert.True(t, items[1].CreatedAt.IsZero())
}

func TestFetchGlobalPropagatesAuthError(t *testing.T) {
	authErr := &source.AuthError{SourceType: source.SourceTypeMailbox, Message: "bad password"}
	a := &Adapter{fetcher: &fakeFetcher{err: authErr}}

	_, err := a.FetchGlobal(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
	assert.True(t, errors.Is(err, authErr))
}

func TestParseMIMEBodyMultipart(t *testing.T) {
	raw := "From: office@lms.edu\r\n" +
		"Subject: Exams\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Exams start Monday.\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<b>Exams start Monday.</b>\r\n" +
		"--XYZ--\r\n"

	text, html := parseMIMEBody([]byte(raw))
	assert.Contains(t, text, "Exams start Monday.")
	assert.Contains(t, html, "<b>Exams start Monday.</b>")
}
