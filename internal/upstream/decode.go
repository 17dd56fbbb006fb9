// SPDX-License-Identifier: MIT

package upstream

import "encoding/json"

// DecodeJSON unmarshals body into v, reporting failures as ErrDecode.
func DecodeJSON(operation string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Sentinel: ErrDecode, Operation: operation, Err: err}
	}
	return nil
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(operation string, v any) error {
	return DecodeJSON(operation, r.Body, v)
}
