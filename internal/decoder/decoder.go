package decoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmespath/go-jmespath"
	"github.com/klauspost/compress/gzip"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

// Decoding stages reported by DecodeError.
const (
	StageExtract = "extract"
	StageBase64  = "base64"
	StageGzip    = "gzip"
	StageJSON    = "json"
)

// DecodeError reports an invocation payload that could not be turned into a
// LogBatch. It is fatal for the invocation.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Extract evaluates the JMESPath expression path against the raw invocation
// event and returns the compressed payload found there.
func Extract(raw []byte, path string) (string, error) {
	var event any
	if err := json.Unmarshal(raw, &event); err != nil {
		return "", &DecodeError{Stage: StageExtract, Err: err}
	}
	res, err := jmespath.Search(path, event)
	if err != nil {
		return "", &DecodeError{Stage: StageExtract, Err: fmt.Errorf("jmespath search failed: %w", err)}
	}
	data, ok := res.(string)
	if !ok || data == "" {
		return "", &DecodeError{Stage: StageExtract, Err: fmt.Errorf("no string payload at %q", path)}
	}
	return data, nil
}

// Decode base64-decodes and gunzips data, then parses the JSON envelope.
func Decode(data string) (*model.LogBatch, error) {
	zipped, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Stage: StageBase64, Err: err}
	}
	zr, err := gzip.NewReader(bytes.NewReader(zipped))
	if err != nil {
		return nil, &DecodeError{Stage: StageGzip, Err: err}
	}
	defer zr.Close()
	text, err := io.ReadAll(zr)
	if err != nil {
		return nil, &DecodeError{Stage: StageGzip, Err: err}
	}
	var batch model.LogBatch
	if err := json.Unmarshal(text, &batch); err != nil {
		return nil, &DecodeError{Stage: StageJSON, Err: err}
	}
	return &batch, nil
}

// DecodeEvent combines Extract and Decode.
func DecodeEvent(raw []byte, path string) (*model.LogBatch, error) {
	data, err := Extract(raw, path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Encode is the inverse of Decode. It is used to build subscription-shaped
// events for replays and tests.
func Encode(batch *model.LogBatch) (string, error) {
	text, err := json.Marshal(batch)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(text); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
