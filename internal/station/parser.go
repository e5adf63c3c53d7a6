package station

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/star/walkertrack/internal/tracking"
	"github.com/star/walkertrack/internal/transform"
)

// document is the station file layout:
//
//	stations:
//	  - name: Goldstone
//	    latitude: 35.4267
//	    longitude: -116.89
//	    altitude_km: 1.0
type document struct {
	Stations []transform.GroundStation `yaml:"stations"`
}

// Parse decodes and validates a YAML station document. Unknown keys are
// rejected so that a misspelt field does not silently become zero.
func Parse(data []byte) ([]transform.GroundStation, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("station document is empty")
		}
		return nil, fmt.Errorf("decoding station document: %w", err)
	}
	if len(doc.Stations) == 0 {
		return nil, fmt.Errorf("station document lists no stations")
	}
	if err := tracking.ValidateStations(doc.Stations); err != nil {
		return nil, err
	}
	return doc.Stations, nil
}
