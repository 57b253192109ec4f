package datacache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
)

// Entries are stored as CBOR compressed with zstd. Times keep nanosecond
// precision so a round trip returns an identical entry.
var (
	payloadEnc  cbor.EncMode
	payloadDec  cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	payloadEnc, err = opts.EncMode()
	if err != nil {
		panic("datacache: CBOR encoder initialization failed: " + err.Error())
	}
	payloadDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("datacache: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("datacache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("datacache: zstd decoder initialization failed: " + err.Error())
	}
}

func encodeEntry(entry aggregation.CacheEntry) ([]byte, error) {
	entry.AccessCount = 0
	raw, err := payloadEnc.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

func decodeEntry(payload []byte) (aggregation.CacheEntry, error) {
	raw, err := zstdDecoder.DecodeAll(payload, nil)
	if err != nil {
		return aggregation.CacheEntry{}, fmt.Errorf("decompress cache entry: %w", err)
	}
	var entry aggregation.CacheEntry
	if err := payloadDec.Unmarshal(raw, &entry); err != nil {
		return aggregation.CacheEntry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, nil
}
