package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// PayloadVersion is the serialization format written by Serialize.
const PayloadVersion = 1

// DocumentPayload is an ordered, chunked document ready for encryption.
type DocumentPayload struct {
	FileName  string
	Chunks    []Chunk
	Category  string
	CreatedAt time.Time
}

// Chunk is one piece of the document as produced by the chunker. Index is
// the chunk's position; indices are contiguous from zero.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// The wire types use pointers so missing fields can be told apart from
// zero values.
type wirePayload struct {
	Version   *int         `json:"version"`
	FileName  *string      `json:"fileName"`
	Category  *string      `json:"category"`
	CreatedAt *string      `json:"createdAt"`
	Chunks    *[]wireChunk `json:"chunks"`
}

type wireChunk struct {
	Index *int    `json:"index"`
	Text  *string `json:"text"`
}

// Serialize encodes p into its canonical byte form. The output depends only
// on p.
func Serialize(p DocumentPayload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	version := PayloadVersion
	createdAt := p.CreatedAt.UTC().Format(time.RFC3339Nano)
	chunks := make([]wireChunk, len(p.Chunks))
	for i := range p.Chunks {
		chunks[i] = wireChunk{Index: &p.Chunks[i].Index, Text: &p.Chunks[i].Text}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(wirePayload{
		Version:   &version,
		FileName:  &p.FileName,
		Category:  &p.Category,
		CreatedAt: &createdAt,
		Chunks:    &chunks,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	// drop the encoder's trailing newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Deserialize is the inverse of Serialize. On failure it returns a zero
// payload and an error wrapping ErrDecode.
func Deserialize(data []byte) (DocumentPayload, error) {
	if err := checkFieldNames(data); err != nil {
		return DocumentPayload{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var w wirePayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return DocumentPayload{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return DocumentPayload{}, fmt.Errorf("%w: trailing data after payload", ErrDecode)
	}

	switch {
	case w.Version == nil:
		return DocumentPayload{}, fmt.Errorf("%w: missing version", ErrDecode)
	case *w.Version != PayloadVersion:
		return DocumentPayload{}, fmt.Errorf("%w: unsupported version %d", ErrDecode, *w.Version)
	case w.FileName == nil:
		return DocumentPayload{}, fmt.Errorf("%w: missing fileName", ErrDecode)
	case w.Category == nil:
		return DocumentPayload{}, fmt.Errorf("%w: missing category", ErrDecode)
	case w.CreatedAt == nil:
		return DocumentPayload{}, fmt.Errorf("%w: missing createdAt", ErrDecode)
	case w.Chunks == nil:
		return DocumentPayload{}, fmt.Errorf("%w: missing chunks", ErrDecode)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, *w.CreatedAt)
	if err != nil {
		return DocumentPayload{}, fmt.Errorf("%w: createdAt: %v", ErrDecode, err)
	}

	chunks := make([]Chunk, 0, len(*w.Chunks))
	for i, c := range *w.Chunks {
		if c.Index == nil || c.Text == nil {
			return DocumentPayload{}, fmt.Errorf("%w: chunk %d is missing index or text", ErrDecode, i)
		}
		chunks = append(chunks, Chunk{Index: *c.Index, Text: *c.Text})
	}

	p := DocumentPayload{
		FileName:  *w.FileName,
		Chunks:    chunks,
		Category:  *w.Category,
		CreatedAt: createdAt.UTC(),
	}
	if err := p.Validate(); err != nil {
		return DocumentPayload{}, errors.Join(ErrDecode, err)
	}
	return p, nil
}

// Validate checks the file name, text encoding, timestamp range and chunk
// ordering. Chunks must be non-nil; an empty document has an empty list.
func (p DocumentPayload) Validate() error {
	if p.FileName == "" {
		return fmt.Errorf("%w: empty file name", ErrInvalidPayload)
	}
	if p.Chunks == nil {
		return fmt.Errorf("%w: nil chunk list", ErrInvalidPayload)
	}
	if !utf8.ValidString(p.FileName) || !utf8.ValidString(p.Category) {
		return fmt.Errorf("%w: file name and category must be valid UTF-8", ErrInvalidPayload)
	}
	if y := p.CreatedAt.UTC().Year(); y < 0 || y > 9999 {
		return fmt.Errorf("%w: createdAt year %d out of range", ErrInvalidPayload, y)
	}
	for i, c := range p.Chunks {
		if c.Index != i {
			return fmt.Errorf("%w: chunk at position %d has index %d", ErrInvalidPayload, i, c.Index)
		}
		if !utf8.ValidString(c.Text) {
			return fmt.Errorf("%w: chunk %d is not valid UTF-8", ErrInvalidPayload, i)
		}
	}
	return nil
}

var (
	payloadFields = map[string]bool{"version": true, "fileName": true, "category": true, "createdAt": true, "chunks": true}
	chunkFields   = map[string]bool{"index": true, "text": true}

	errUnexpectedShape = errors.New("unexpected shape")
)

// checkFieldNames rejects field names that are not an exact match and
// fields that appear twice. The decoder alone folds case and keeps the
// last duplicate. Type errors are left to the decoder.
func checkFieldNames(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	err := checkObject(dec, payloadFields, func(key string) error {
		if key != "chunks" {
			return skipValue(dec)
		}
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if tok != json.Delim('[') {
			return errUnexpectedShape
		}
		for dec.More() {
			if err := checkObject(dec, chunkFields, func(string) error { return skipValue(dec) }); err != nil {
				return err
			}
		}
		_, err = dec.Token()
		return err
	})
	if errors.Is(err, errUnexpectedShape) {
		return nil
	}
	return err
}

func checkObject(dec *json.Decoder, allowed map[string]bool, value func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return errUnexpectedShape
	}
	seen := make(map[string]bool, len(allowed))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if !allowed[key] {
			return fmt.Errorf("unknown field %q", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true
		if err := value(key); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// skipValue consumes one value, nested or not.
func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}
