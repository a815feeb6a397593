package core

import (
	"context"
	"io"
	"time"
)

// Codec is the port to an image library.  Implementations live in
// adapters/codec/ and adapters/vips/.
type Codec interface {
	Decode(ctx context.Context, path string) (*Image, error)
	DecodeBytes(ctx context.Context, data []byte) (*Image, error)
	Encode(ctx context.Context, img *Image, format Format, path string) error
	EncodeBytes(ctx context.Context, img *Image, format Format) ([]byte, error)

	ProbeDimensions(ctx context.Context, path string) (Size, error)
	ProbeFormat(ctx context.Context, path string) (Format, error)
	// PageCount returns at least 1 for any decodable file.
	PageCount(ctx context.Context, path string) (int, error)
	ReadPage(ctx context.Context, path string, index int) (*Image, error)

	SupportedInputs() []Format
	SupportedOutputs() []Format
}

// MetadataReader is the port to a metadata service.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, path string) (Metadata, error)
	ReadMetadataBytes(ctx context.Context, data []byte) (Metadata, error)
}

// Decoder converts a single encoded stream into an Image.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*Image, error)
	DecodeConfig(ctx context.Context, r io.Reader) (Size, error)
	// CanDecode reports whether this decoder handles the given format hint.
	CanDecode(format Format) bool
}

// PageDecoder is implemented by decoders of multi-image containers.
type PageDecoder interface {
	Decoder
	PageCount(ctx context.Context, data []byte) (int, error)
	DecodePage(ctx context.Context, data []byte, index int) (*Image, error)
}

// Encoder serialises an Image in a target format.
type Encoder interface {
	Encode(ctx context.Context, w io.Writer, img *Image, opts EncodeOptions) error
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality int // 1-100; 0 = use encoder default
}

// TempStorage owns short-lived files such as the materialized source.
// Implementations live in adapters/storage/.
type TempStorage interface {
	// Create writes data to a new file named tmp<random>.<ext> and returns its path.
	Create(ctx context.Context, ext string, data []byte) (string, error)
	// Replace atomically swaps the contents of path for data.
	Replace(ctx context.Context, path string, data []byte) error
	Remove(ctx context.Context, path string) error
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordOperationTime(name string, d time.Duration)
	RecordPixels(n int64)
	RecordError(name string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
	DecoderFormats() []Format
	EncoderFormats() []Format
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
