package generichttp

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
)

// FloatT is the JSON body of a float value, {"f64": 1.5}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is the JSON body of an int value, {"int": 3}
type IntT struct {
	Int int `json:"int"`
}

// Uint32T is the JSON body of a uint32 value, {"uint32": 3}
type Uint32T struct {
	Uint uint32 `json:"uint32"`
}

// StrT is the JSON body of a string value, {"str": "abc"}
type StrT struct {
	Str string `json:"str"`
}

// BoolT is the JSON body of a bool value, {"bool": true}
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload holds one value of kind T and replies with it as JSON, or as
// plain text when the request carries ?format=text
type HumanPayload struct {
	T      types.BasicKind
	Float  float64
	Int    int
	Uint32 uint32
	String string
	Bool   bool
}

func (hp HumanPayload) value() interface{} {
	switch hp.T {
	case types.Float64:
		return FloatT{hp.Float}
	case types.Int:
		return IntT{hp.Int}
	case types.Uint32:
		return Uint32T{hp.Uint32}
	case types.String:
		return StrT{hp.String}
	case types.Bool:
		return BoolT{hp.Bool}
	}
	return nil
}

// EncodeAndRespond writes the payload to w
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	v := hp.value()
	if v == nil {
		http.Error(w, fmt.Sprintf("unsupported payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain")
		var s string
		switch t := v.(type) {
		case FloatT:
			s = fmt.Sprint(t.F64)
		case IntT:
			s = fmt.Sprint(t.Int)
		case Uint32T:
			s = fmt.Sprint(t.Uint)
		case StrT:
			s = t.Str
		case BoolT:
			s = fmt.Sprint(t.Bool)
		}
		fmt.Fprint(w, s)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Decode reads the JSON body of r into v, replying 400 on failure
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// Reply finishes a setter: 500 with the error, or 200
func Reply(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// JSON encodes v as the reply
func JSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
