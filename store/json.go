package store

import jsoniter "github.com/json-iterator/go"

// jsonAPI matches encoding/json's output byte-for-byte while running
// faster; the teacher's own cmn/config.go reaches for json-iterator in
// exactly this configuration rather than the standard library.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonMarshal(v interface{}) ([]byte, error) { return jsonAPI.Marshal(v) }

func jsonUnmarshal(data []byte, v interface{}) error { return jsonAPI.Unmarshal(data, v) }
