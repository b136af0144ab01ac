package hydrate

import (
	"encoding/json/jsontext"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-app/skywatch-server/internal/domain"
)

func TestParsePost_TextAndMetadata(t *testing.T) {
	value := jsontext.Value(`{
		"$type": "app.bsky.feed.post",
		"text": "hello world",
		"createdAt": "2026-08-01T12:00:00Z",
		"langs": ["en", "pt"],
		"tags": ["outer"],
		"reply": {"parent": {"uri": "at://did:plc:parent/app.bsky.feed.post/1"}}
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	assert.Equal(t, "hello world", post.Text)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), post.CreatedAt)
	assert.Equal(t, []string{"en", "pt"}, post.Langs)
	assert.NotNil(t, post.Reply)

	links, tags := post.links()
	assert.Empty(t, links)
	assert.Equal(t, []string{"outer"}, tags)
}

func TestPostRecord_FacetLinksAndTags(t *testing.T) {
	value := jsontext.Value(`{
		"text": "check example.com #golang",
		"facets": [
			{"features": [{"$type": "app.bsky.richtext.facet#link", "uri": "https://example.com"}]},
			{"features": [{"$type": "app.bsky.richtext.facet#tag", "tag": "golang"}]},
			{"features": [{"$type": "app.bsky.richtext.facet#mention", "did": "did:plc:abc"}]}
		]
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	links, tags := post.links()
	assert.Equal(t, []string{"https://example.com"}, links)
	assert.Equal(t, []string{"golang"}, tags)
}

func TestPostRecord_ImageEmbedBlobs(t *testing.T) {
	value := jsontext.Value(`{
		"text": "two pics",
		"embed": {
			"$type": "app.bsky.embed.images",
			"images": [
				{"alt": "first", "image": {"$type": "blob", "mimeType": "image/jpeg", "size": 1234, "ref": {"$link": "bafyimg1"}}},
				{"alt": "", "image": {"$type": "blob", "mimeType": "image/png", "size": 5678, "ref": {"$link": "bafyimg2"}}}
			]
		}
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	refs := post.blobRefs()
	require.Len(t, refs, 2)
	assert.Equal(t, domain.BlobRef{CID: "bafyimg1", MimeType: "image/jpeg", Size: 1234, Alt: "first"}, refs[0])
	assert.Equal(t, domain.BlobRef{CID: "bafyimg2", MimeType: "image/png", Size: 5678}, refs[1])
}

func TestPostRecord_ExternalThumbBlob(t *testing.T) {
	value := jsontext.Value(`{
		"text": "link card",
		"embed": {
			"$type": "app.bsky.embed.external",
			"external": {
				"uri": "https://example.com/article",
				"thumb": {"$type": "blob", "mimeType": "image/jpeg", "size": 999, "ref": {"$link": "bafythumb"}}
			}
		}
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	refs := post.blobRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "bafythumb", refs[0].CID)
}

func TestPostRecord_VideoEmbedBlob(t *testing.T) {
	value := jsontext.Value(`{
		"text": "clip",
		"embed": {
			"$type": "app.bsky.embed.video",
			"video": {"$type": "blob", "mimeType": "video/mp4", "size": 100000, "ref": {"$link": "bafyvid"}}
		}
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	refs := post.blobRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "bafyvid", refs[0].CID)
	assert.Equal(t, "video/mp4", refs[0].MimeType)
}

func TestPostRecord_RecordWithMediaNesting(t *testing.T) {
	value := jsontext.Value(`{
		"text": "quote with pic",
		"embed": {
			"$type": "app.bsky.embed.recordWithMedia",
			"media": {
				"$type": "app.bsky.embed.images",
				"images": [
					{"alt": "nested", "image": {"mimeType": "image/jpeg", "size": 42, "ref": {"$link": "bafynested"}}}
				]
			}
		}
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	refs := post.blobRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "bafynested", refs[0].CID)
	assert.Equal(t, "nested", refs[0].Alt)
}

func TestWireBlob_LegacyCIDForm(t *testing.T) {
	value := jsontext.Value(`{
		"text": "old post",
		"embed": {
			"$type": "app.bsky.embed.images",
			"images": [{"alt": "", "image": {"mimeType": "image/jpeg", "cid": "bafylegacy"}}]
		}
	}`)

	post, err := parsePost(value)
	require.NoError(t, err)

	refs := post.blobRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "bafylegacy", refs[0].CID)
}

func TestWireBlob_NilSafety(t *testing.T) {
	var b *wireBlob
	assert.Equal(t, "", b.cidString())
	assert.Nil(t, b.toRef("alt"))

	empty := &wireBlob{MimeType: "image/png"}
	assert.Nil(t, empty.toRef(""), "a blob without any cid yields no reference")
}

func TestParsePost_NoEmbed(t *testing.T) {
	post, err := parsePost(jsontext.Value(`{"text": "plain"}`))
	require.NoError(t, err)
	assert.Empty(t, post.blobRefs())
}

func TestParsePost_Malformed(t *testing.T) {
	_, err := parsePost(jsontext.Value(`"just a string"`))
	assert.Error(t, err)
}

func TestParseProfile(t *testing.T) {
	value := jsontext.Value(`{
		"$type": "app.bsky.actor.profile",
		"displayName": "Alice",
		"description": "hi there",
		"avatar": {"$type": "blob", "mimeType": "image/jpeg", "size": 5000, "ref": {"$link": "bafyavatar"}},
		"banner": {"$type": "blob", "mimeType": "image/jpeg", "size": 9000, "ref": {"$link": "bafybanner"}}
	}`)

	profile, err := parseProfile(value)
	require.NoError(t, err)

	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, "hi there", profile.Description)
	assert.Equal(t, "bafyavatar", profile.Avatar.cidString())
	assert.Equal(t, "bafybanner", profile.Banner.cidString())
}

func TestParseProfile_MinimalRecord(t *testing.T) {
	profile, err := parseProfile(jsontext.Value(`{}`))
	require.NoError(t, err)

	assert.Empty(t, profile.DisplayName)
	assert.Nil(t, profile.Avatar)
	assert.Nil(t, profile.Avatar.toRef(""))
}
