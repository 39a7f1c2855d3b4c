// Package generichttp wraps getter and setter functions of devices in HTTP
// handlers and collects them in route tables bound onto chi routers.
//
// Values travel as small JSON objects: {"f64": 1.5}, {"int": 3},
// {"str": "abc"}, {"bool": true}.
package generichttp

import (
	"go/types"
	"net/http"
)

// GetFloat calls a float-getting function and returns the response
// as json {'f64': value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		HumanPayload{T: types.Float64, Float: f}.EncodeAndRespond(w, r)
	}
}

// SetFloat parses a JSON input of {'f64': value} and
// calls fcn with it
func SetFloat(fcn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := FloatT{}
		if Decode(w, r, &f) {
			Reply(w, fcn(f.F64))
		}
	}
}

// GetInt calls an int-getting function and returns the response
// as json {'int': value}
func GetInt(fcn func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		HumanPayload{T: types.Int, Int: i}.EncodeAndRespond(w, r)
	}
}

// SetInt parses a JSON input of {'int': value} and
// calls fcn with it
func SetInt(fcn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := IntT{}
		if Decode(w, r, &i) {
			Reply(w, fcn(i.Int))
		}
	}
}

// GetUint32 calls a uint32-getting function and returns the response
// as json {'uint32': value}
func GetUint32(fcn func() (uint32, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		HumanPayload{T: types.Uint32, Uint32: u}.EncodeAndRespond(w, r)
	}
}

// SetUint32 parses a JSON input of {'uint32': value} and calls fcn with it
func SetUint32(fcn func(uint32) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := Uint32T{}
		if Decode(w, r, &u) {
			Reply(w, fcn(u.Uint))
		}
	}
}

// GetString calls a string-getting function and returns the response
// as json {'str': value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		HumanPayload{T: types.String, String: s}.EncodeAndRespond(w, r)
	}
}

// SetString parses a JSON input of {'str': value} and
// calls fcn with it
func SetString(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := StrT{}
		if Decode(w, r, &s) {
			Reply(w, fcn(s.Str))
		}
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		HumanPayload{T: types.Bool, Bool: b}.EncodeAndRespond(w, r)
	}
}

// SetBool parses a JSON input of {'bool': value} and
// calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		if Decode(w, r, &b) {
			Reply(w, fcn(b.Bool))
		}
	}
}
