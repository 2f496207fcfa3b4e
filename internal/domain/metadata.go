package domain

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// FormatGeoTIFF is the format name written into rewritten metadata.
const FormatGeoTIFF = "GeoTIFF"

// MetadataDocument is one dataset metadata record decoded from a source
// file. The document shape is open; only the sections this pipeline
// rewrites are interpreted.
type MetadataDocument struct {
	root map[string]interface{}
}

// ParseMetadataDocument decodes a YAML metadata record.
func ParseMetadataDocument(raw []byte) (*MetadataDocument, error) {
	var root map[string]interface{}
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode metadata document: %w", err)
	}
	if root == nil {
		root = make(map[string]interface{})
	}
	return &MetadataDocument{root: root}, nil
}

// bandSection returns the image.bands mapping of the document.
func (d *MetadataDocument) bandSection() (map[string]interface{}, error) {
	image, ok := d.root["image"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("metadata document has no image section: %w", ErrInvalidInput)
	}
	bands, ok := image["bands"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("metadata document has no image.bands section: %w", ErrInvalidInput)
	}
	return bands, nil
}

// Bands returns the band names present in the document, sorted.
func (d *MetadataDocument) Bands() ([]string, error) {
	bands, err := d.bandSection()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(bands))
	for name := range bands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RewriteForCOG points the document's band references at the converted
// single-band files of a dataset: every image.bands entry gets layer "1"
// and path "<prefix>_<band>.tif", the format becomes GeoTIFF and the
// lineage source dataset map is emptied.
func (d *MetadataDocument) RewriteForCOG(prefix string) error {
	bands, err := d.bandSection()
	if err != nil {
		return err
	}
	for name, entry := range bands {
		band, ok := entry.(map[string]interface{})
		if !ok {
			band = make(map[string]interface{})
			bands[name] = band
		}
		band["layer"] = "1"
		band["path"] = BandFilename(prefix, name)
	}
	d.root["format"] = map[string]interface{}{"name": FormatGeoTIFF}
	d.root["lineage"] = map[string]interface{}{"source_datasets": map[string]interface{}{}}
	return nil
}

// BandPath returns the path recorded for a band, if present.
func (d *MetadataDocument) BandPath(name string) (string, bool) {
	bands, err := d.bandSection()
	if err != nil {
		return "", false
	}
	band, ok := bands[name].(map[string]interface{})
	if !ok {
		return "", false
	}
	path, ok := band["path"].(string)
	return path, ok
}

// Encode renders the document as YAML.
func (d *MetadataDocument) Encode() ([]byte, error) {
	out, err := yaml.Marshal(d.root)
	if err != nil {
		return nil, fmt.Errorf("encode metadata document: %w", err)
	}
	return out, nil
}
