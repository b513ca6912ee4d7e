package scene

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sigvm.scene")

// BundleVersion is the current scene bundle format version.
const BundleVersion = 1

// Bundle is the intake format produced by the container tool: already
// decrypted and decompressed scenes plus the shared tables.
type Bundle struct {
	Version     int               `cbor:"1,keyasint"`
	Scenes      []*Program        `cbor:"2,keyasint"`
	IncCommands []IncludedCommand `cbor:"3,keyasint,omitempty"`
	IncProps    []PropDecl        `cbor:"4,keyasint,omitempty"`
}

var (
	bundleEncMode cbor.EncMode
	bundleDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("scene: failed to create CBOR enc mode: %v", err))
	}
	bundleEncMode = em

	dm, err := cbor.DecOptions{
		MaxNestedLevels:  16,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("scene: failed to create CBOR dec mode: %v", err))
	}
	bundleDecMode = dm
}

// MarshalBundle serializes a bundle to CBOR bytes.
func MarshalBundle(b *Bundle) ([]byte, error) {
	return bundleEncMode.Marshal(b)
}

// UnmarshalBundle deserializes and validates a bundle.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := bundleDecMode.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("scene: unmarshal bundle: %w", err)
	}
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("scene: unsupported bundle version %d", b.Version)
	}
	for i, prog := range b.Scenes {
		if prog == nil {
			return nil, fmt.Errorf("scene: bundle scene %d is empty", i)
		}
		if err := prog.Validate(); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// Provider builds a MapProvider from the bundle contents.
func (b *Bundle) Provider() *MapProvider {
	p := NewMapProvider(b.Scenes...)
	p.SetIncludedCommands(b.IncCommands)
	p.SetIncludedProps(b.IncProps)
	return p
}

// ReadBundle reads a bundle from r.
func ReadBundle(r io.Reader) (*Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("scene: read bundle: %w", err)
	}
	return UnmarshalBundle(data)
}

// LoadBundle reads a bundle file and returns a provider over it.
func LoadBundle(path string) (*MapProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: open bundle: %w", err)
	}
	defer f.Close()

	b, err := ReadBundle(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded bundle %s: %d scenes, %d included commands", path, len(b.Scenes), len(b.IncCommands))
	return b.Provider(), nil
}

// WriteBundle writes b to path.
func WriteBundle(path string, b *Bundle) error {
	data, err := MarshalBundle(b)
	if err != nil {
		return fmt.Errorf("scene: marshal bundle: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
