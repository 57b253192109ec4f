package ocean

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// TimeWindow is a closed interval of observation time.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// DataRequest is the unit of work handed to a source adapter and the
// identity used for cache lookups.
type DataRequest struct {
	Domain Domain     `json:"domain"`
	Region Region     `json:"region"`
	Window TimeWindow `json:"window"`
}

// canonicalRequest is the normalized shape hashed by Key. Field order and
// integer keys are fixed so the CBOR bytes do not depend on how the
// DataRequest was built.
type canonicalRequest struct {
	Domain  string `cbor:"1,keyasint"`
	Region  string `cbor:"2,keyasint"`
	North   int64  `cbor:"3,keyasint"`
	South   int64  `cbor:"4,keyasint"`
	East    int64  `cbor:"5,keyasint"`
	West    int64  `cbor:"6,keyasint"`
	Station string `cbor:"7,keyasint"`
	Start   int64  `cbor:"8,keyasint"`
	End     int64  `cbor:"9,keyasint"`
}

var keyEncMode cbor.EncMode

func init() {
	var err error
	keyEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ocean: CBOR encoder initialization failed: " + err.Error())
	}
}

// Key returns the content address of the request: a hex BLAKE3 digest of
// its Core Deterministic CBOR encoding. Coordinates are compared at 1e-4
// degree resolution and times at second resolution in UTC.
func (r DataRequest) Key() string {
	payload, err := keyEncMode.Marshal(r.canonical())
	if err != nil {
		// Only fixed-width scalars and strings are encoded.
		panic(fmt.Sprintf("ocean: encode request key: %v", err))
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (r DataRequest) canonical() canonicalRequest {
	return canonicalRequest{
		Domain:  string(r.Domain),
		Region:  r.Region.ID,
		North:   quantize(r.Region.BoundingBox.North),
		South:   quantize(r.Region.BoundingBox.South),
		East:    quantize(r.Region.BoundingBox.East),
		West:    quantize(r.Region.BoundingBox.West),
		Station: r.Region.StationID,
		Start:   r.Window.Start.UTC().Unix(),
		End:     r.Window.End.UTC().Unix(),
	}
}

func quantize(deg float64) int64 {
	return int64(math.Round(deg * 1e4))
}
