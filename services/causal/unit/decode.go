// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package unit

import (
	"encoding/json"
	"fmt"
	"io"
)

// Decode reads a JSON code-unit document and validates it.
//
// Inputs:
//
//	r - Reader positioned at a single JSON object.
//
// Outputs:
//
//	*CodeUnit - The decoded unit, nil on error.
//	error - Wraps ErrMalformedUnit on decode failure, or any Validate error.
func Decode(r io.Reader) (*CodeUnit, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var u CodeUnit
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUnit, err)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}
