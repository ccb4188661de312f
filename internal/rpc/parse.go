package rpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// antiXSSIPrefix guards batchexecute responses against JSON hijacking. It is
// stripped before any line scanning.
const antiXSSIPrefix = ")]}'"

// ParseEnvelope extracts the RPC payload from a raw batchexecute response
// body. The body is a chunked stream of JSON lines; the first line
// containing a "wrb.fr" frame holds the response envelope, whose third
// element is the payload serialized as a nested JSON string. Returns the
// decoded payload and the raw inner JSON text.
func ParseEnvelope(body string) (any, string, error) {
	body = strings.TrimPrefix(body, antiXSSIPrefix)

	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, "wrb.fr") {
			continue
		}

		var frames []any
		if err := json.Unmarshal([]byte(line), &frames); err != nil {
			return nil, "", fmt.Errorf("rpc: malformed response frame: %w", err)
		}
		if len(frames) == 0 {
			return nil, "", fmt.Errorf("rpc: empty response frame")
		}
		frame, ok := frames[0].([]any)
		if !ok || len(frame) < 3 {
			return nil, "", fmt.Errorf("rpc: unexpected frame shape")
		}
		inner, ok := frame[2].(string)
		if !ok {
			// A null payload means the RPC succeeded with no data.
			if frame[2] == nil {
				return nil, "", nil
			}
			return nil, "", fmt.Errorf("rpc: unexpected payload type %T", frame[2])
		}

		var data any
		if err := json.Unmarshal([]byte(inner), &data); err != nil {
			return nil, "", fmt.Errorf("rpc: malformed payload: %w", err)
		}
		return data, inner, nil
	}

	return nil, "", fmt.Errorf("rpc: no wrb.fr frame in response")
}

// EncodeEnvelope renders a batchexecute response body carrying a single
// wrb.fr frame with the given payload. The inverse of ParseEnvelope, used by
// tests standing in for the remote endpoint.
func EncodeEnvelope(rpcID, innerJSON string) string {
	frame := []any{[]any{"wrb.fr", rpcID, innerJSON, nil, nil, nil, "generic"}}
	data, _ := json.Marshal(frame)
	return antiXSSIPrefix + "\n\n" + string(data) + "\n"
}
