package humastar

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// Signals is the flat JSON object Datastar posts as the request body.
type Signals map[string]any

// ParseSignals decodes a request body. An empty body has no signals.
func ParseSignals(body []byte) (Signals, error) {
	signals := Signals{}
	if len(bytes.TrimSpace(body)) == 0 {
		return signals, nil
	}
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// Number returns a numeric signal. Input elements bound to a signal post
// strings, so numeric strings count too.
func (s Signals) Number(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Float is Number without the presence flag.
func (s Signals) Float(key string) float64 {
	f, _ := s.Number(key)
	return f
}

// Bool returns a boolean signal, false when missing.
func (s Signals) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// SignalsInput is a Huma input whose body is Datastar signals.
type SignalsInput struct {
	RawBody []byte
}

// Signals decodes the body, failing with a Huma 400.
func (i *SignalsInput) Signals() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid signals: " + err.Error())
	}
	return signals, nil
}
