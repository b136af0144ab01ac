package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubject(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    Subject
		wantErr bool
	}{
		{
			name: "bare did is an account",
			uri:  "did:plc:abc123",
			want: Subject{Kind: SubjectAccount, DID: "did:plc:abc123"},
		},
		{
			name: "did:web is an account",
			uri:  "did:web:example.com",
			want: Subject{Kind: SubjectAccount, DID: "did:web:example.com"},
		},
		{
			name: "full at-uri is content",
			uri:  "at://did:plc:abc123/app.bsky.feed.post/3kabc",
			want: Subject{
				Kind:       SubjectContent,
				DID:        "did:plc:abc123",
				Collection: "app.bsky.feed.post",
				RecordKey:  "3kabc",
				URI:        "at://did:plc:abc123/app.bsky.feed.post/3kabc",
			},
		},
		{
			name: "at-uri with no path is an account",
			uri:  "at://did:plc:abc123",
			want: Subject{Kind: SubjectAccount, DID: "did:plc:abc123"},
		},
		{
			name:    "at-uri with non-did authority",
			uri:     "at://alice.example.com/app.bsky.feed.post/3kabc",
			wantErr: true,
		},
		{
			name:    "at-uri with two segments",
			uri:     "at://did:plc:abc123/app.bsky.feed.post",
			wantErr: true,
		},
		{
			name:    "at-uri with empty segment",
			uri:     "at://did:plc:abc123/app.bsky.feed.post/",
			wantErr: true,
		},
		{
			name:    "plain http url",
			uri:     "https://example.com/post/1",
			wantErr: true,
		},
		{
			name:    "empty uri",
			uri:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubject(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubject_ID(t *testing.T) {
	content, err := ParseSubject("at://did:plc:abc/app.bsky.feed.post/3kabc")
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3kabc", content.ID())

	account, err := ParseSubject("did:plc:abc")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc", account.ID())
}

func TestSubjectKind_String(t *testing.T) {
	assert.Equal(t, "account", SubjectAccount.String())
	assert.Equal(t, "content", SubjectContent.String())
	assert.Equal(t, "unknown", SubjectUnknown.String())
}
