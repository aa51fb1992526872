// Package archive reads and writes sealed bundles: zip files carrying the
// ciphertext of one document and the manifest needed to list and open it.
// Bundles move sealed content between stores and ledgers.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
	"github.com/opentdf/contextvault/pkg/archive/manifest"
	"github.com/opentdf/contextvault/pkg/vault"
)

const (
	manifestName = "0.manifest.json"
	payloadName  = "0.payload"

	MaxManifestSize = 64 << 10
	MaxPayloadSize  = 64 << 20
)

type Bundle struct {
	Listing    vault.Listing
	Envelope   vault.AccessEnvelope
	Ciphertext []byte
}

// Write stores b as a zip archive. The listing is written without its
// envelope, which has its own manifest entry.
func Write(w io.Writer, b Bundle) error {
	if len(b.Ciphertext) > MaxPayloadSize {
		return fmt.Errorf("payload of %d bytes exceeds %d", len(b.Ciphertext), MaxPayloadSize)
	}
	zw := zip.NewWriter(w)
	m := manifest.Object{
		SchemaVersion: manifest.SchemaVersion,
		Listing:       b.Listing.Public(),
		Envelope:      b.Envelope,
		PayloadSize:   len(b.Ciphertext),
	}
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	// ciphertext does not compress
	pw, err := zw.CreateHeader(&zip.FileHeader{Name: payloadName, Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := pw.Write(b.Ciphertext); err != nil {
		return err
	}
	mw, err := zw.Create(manifestName)
	if err != nil {
		return err
	}
	if _, err := mw.Write(mb); err != nil {
		return err
	}
	return zw.Close()
}

// Read parses and validates a bundle. The payload must hash to the
// envelope's content id.
func Read(r io.ReaderAt, size int64) (Bundle, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Bundle{}, err
	}
	var manifestFile, payloadFile *zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == manifestName && manifestFile == nil:
			manifestFile = f
		case f.Name == payloadName && payloadFile == nil:
			payloadFile = f
		default:
			return Bundle{}, fmt.Errorf("unexpected bundle entry %s", f.Name)
		}
	}
	if manifestFile == nil || payloadFile == nil {
		return Bundle{}, fmt.Errorf("bundle needs %s and %s", manifestName, payloadName)
	}

	raw, err := readFile(manifestFile, MaxManifestSize)
	if err != nil {
		return Bundle{}, err
	}
	m, err := manifest.Valid(raw)
	if err != nil {
		return Bundle{}, fmt.Errorf("invalid manifest: %w", err)
	}
	if m.PayloadSize > MaxPayloadSize {
		return Bundle{}, fmt.Errorf("payload of %d bytes exceeds %d", m.PayloadSize, MaxPayloadSize)
	}
	ciphertext, err := readFile(payloadFile, int64(m.PayloadSize))
	if err != nil {
		return Bundle{}, err
	}
	if len(ciphertext) != m.PayloadSize {
		return Bundle{}, fmt.Errorf("payload is %d bytes, manifest says %d", len(ciphertext), m.PayloadSize)
	}
	if id := tdfCrypto.ContentID(ciphertext); id != m.Envelope.ContentID {
		return Bundle{}, fmt.Errorf("payload hash %s does not match content id %s", id, m.Envelope.ContentID)
	}
	return Bundle{Listing: m.Listing, Envelope: m.Envelope, Ciphertext: ciphertext}, nil
}

// ReadAll reads a bundle from a stream.
func ReadAll(r io.Reader) (Bundle, error) {
	buff := bytes.NewBuffer([]byte{})
	size, err := io.Copy(buff, r)
	if err != nil {
		return Bundle{}, err
	}
	return Read(bytes.NewReader(buff.Bytes()), size)
}

// readFile reads at most limit bytes of f. The declared size is not
// trusted; the stream is cut one byte past limit.
func readFile(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%s is %d bytes, limit %d", f.Name, f.UncompressedSize64, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", f.Name, limit)
	}
	return b, nil
}
