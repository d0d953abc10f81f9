// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package message

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes v with the package codec.
func Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes b into v with the package codec.
func Unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
