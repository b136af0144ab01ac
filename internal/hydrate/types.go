package hydrate

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"time"

	"github.com/skywatch-app/skywatch-server/internal/domain"
)

// Wire shapes for the dynamic record structures returned by the content
// service. Everything is decoded into tagged variants with explicit optional
// fields at this boundary; unknown fields are dropped.

// wireBlob is a lexicon blob reference. The ref/$link form is current; the
// bare cid form appears in legacy records.
type wireBlob struct {
	Type     string `json:"$type"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Ref      *struct {
		Link string `json:"$link"`
	} `json:"ref"`
	LegacyCID string `json:"cid"`
}

// cid returns whichever content identifier form the blob carries.
func (b *wireBlob) cidString() string {
	if b == nil {
		return ""
	}
	if b.Ref != nil && b.Ref.Link != "" {
		return b.Ref.Link
	}
	return b.LegacyCID
}

// toRef converts a wire blob to a domain blob reference, or nil when the
// blob carries no usable identifier.
func (b *wireBlob) toRef(alt string) *domain.BlobRef {
	cid := b.cidString()
	if cid == "" {
		return nil
	}
	return &domain.BlobRef{
		CID:      cid,
		MimeType: b.MimeType,
		Size:     b.Size,
		Alt:      alt,
	}
}

// postRecord is the subset of a feed post record the pipeline captures.
type postRecord struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	Langs     []string  `json:"langs"`
	Tags      []string  `json:"tags"`
	Reply     *struct {
		Parent struct {
			URI string `json:"uri"`
		} `json:"parent"`
	} `json:"reply"`
	Facets []struct {
		Features []struct {
			Type string `json:"$type"`
			URI  string `json:"uri"`
			Tag  string `json:"tag"`
		} `json:"features"`
	} `json:"facets"`
	Embed *postEmbed `json:"embed"`
}

// postEmbed is a tagged variant over the embed union. Only the fields of
// the matched variant are set.
type postEmbed struct {
	Type   string `json:"$type"`
	Images []struct {
		Alt   string    `json:"alt"`
		Image *wireBlob `json:"image"`
	} `json:"images"`
	External *struct {
		URI   string    `json:"uri"`
		Thumb *wireBlob `json:"thumb"`
	} `json:"external"`
	Video *wireBlob  `json:"video"`
	Media *postEmbed `json:"media"` // recordWithMedia nests the media embed
}

// parsePost decodes a post record value and extracts its blob references.
func parsePost(value jsontext.Value) (*postRecord, error) {
	var rec postRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// links returns the link facet URIs and facet tags embedded in rich text.
func (p *postRecord) links() (links []string, tags []string) {
	tags = p.Tags
	for _, facet := range p.Facets {
		for _, feat := range facet.Features {
			switch feat.Type {
			case "app.bsky.richtext.facet#link":
				if feat.URI != "" {
					links = append(links, feat.URI)
				}
			case "app.bsky.richtext.facet#tag":
				if feat.Tag != "" {
					tags = append(tags, feat.Tag)
				}
			}
		}
	}
	return links, tags
}

// blobRefs walks the embed union and collects every referenced blob.
func (p *postRecord) blobRefs() []domain.BlobRef {
	return embedBlobRefs(p.Embed, nil)
}

func embedBlobRefs(e *postEmbed, out []domain.BlobRef) []domain.BlobRef {
	if e == nil {
		return out
	}
	for _, img := range e.Images {
		if ref := img.Image.toRef(img.Alt); ref != nil {
			out = append(out, *ref)
		}
	}
	if e.External != nil {
		if ref := e.External.Thumb.toRef(""); ref != nil {
			out = append(out, *ref)
		}
	}
	if ref := e.Video.toRef(""); ref != nil {
		out = append(out, *ref)
	}
	return embedBlobRefs(e.Media, out)
}

// profileRecord is the subset of a self-authored profile record we capture.
type profileRecord struct {
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Avatar      *wireBlob `json:"avatar"`
	Banner      *wireBlob `json:"banner"`
}

func parseProfile(value jsontext.Value) (*profileRecord, error) {
	var rec profileRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
