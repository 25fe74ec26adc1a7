package payload

import "encoding/json"

// Tag names that are part of the cross-implementation interop contract.
// Renaming any of these breaks verification of every record already published.
const (
	TagSignature     = "signature"
	TagKeyIndex      = "key-index"
	TagPayloadDigest = "payload-digest"
	TagCreator       = "creator"
)

// Tag is a single name/value pair. On the wire a tag is a two-element JSON
// array, so tag order within a payload is preserved exactly as written.
type Tag struct {
	Name  string
	Value string
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Name, t.Value})
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	var pair [2]string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	t.Name = pair[0]
	t.Value = pair[1]
	return nil
}

// Payload is the unit of publication: a context string, an ordered tag list,
// and the content records themselves. Record order is semantically meaningful
// and is never reordered.
type Payload struct {
	Context string           `json:"context"`
	Tags    []Tag            `json:"tags"`
	Records []map[string]any `json:"records"`
}

// Tag returns the value of the first tag with the given name.
func (p *Payload) Tag(name string) (string, bool) {
	for _, t := range p.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// SetTag replaces the first tag with the given name, or appends one.
func (p *Payload) SetTag(name, value string) {
	for i, t := range p.Tags {
		if t.Name == name {
			p.Tags[i].Value = value
			return
		}
	}
	p.Tags = append(p.Tags, Tag{Name: name, Value: value})
}

// Clone returns a deep copy. Records are copied through a JSON round trip so
// the copy shares no mutable state with the original.
func (p *Payload) Clone() (*Payload, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out Payload
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out.Tags == nil {
		out.Tags = []Tag{}
	}
	if out.Records == nil {
		out.Records = []map[string]any{}
	}
	return &out, nil
}

// PreSignatureView returns a copy of the payload with every signature-bearing
// tag removed. This is the view that gets canonicalized and hashed: the
// signature itself, the index hint, and the digest hint are all attached
// after signing and must never feed back into the digest.
func (p *Payload) PreSignatureView() *Payload {
	out := &Payload{
		Context: p.Context,
		Tags:    make([]Tag, 0, len(p.Tags)),
		Records: p.Records,
	}
	for _, t := range p.Tags {
		switch t.Name {
		case TagSignature, TagKeyIndex, TagPayloadDigest:
			continue
		}
		out.Tags = append(out.Tags, t)
	}
	return out
}
