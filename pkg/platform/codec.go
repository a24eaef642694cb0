// Package platform connects peko to the native side of a mobile app.
//
// Go and native code talk over named channels: method channels for calls
// (check a permission, show the dialog) and event channels for values the
// native side pushes later (the user's decisions). The native embedder
// installs a NativeBridge and forwards incoming traffic to HandleMethodCall
// and HandleEvent.
package platform

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// MessageCodec encodes and decodes messages for platform channel communication.
type MessageCodec interface {
	// Encode converts a Go value to bytes for transmission to native code.
	Encode(value any) ([]byte, error)

	// Decode converts bytes received from native code to a Go value.
	Decode(data []byte) (any, error)
}

// JsonCodec implements MessageCodec using JSON encoding.
// JSON prioritizes interoperability and minimal native dependencies.
type JsonCodec struct{}

// Encode serializes the value to JSON bytes.
func (c JsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a Go value.
func (c JsonCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CborCodec implements MessageCodec using deterministic CBOR. Maps decode
// as map[string]any so parsed values look the same as with JsonCodec.
type CborCodec struct{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("platform: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("platform: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes the value to CBOR bytes.
func (c CborCodec) Encode(value any) ([]byte, error) {
	return cborEnc.Marshal(value)
}

// Decode deserializes CBOR bytes to a Go value.
func (c CborCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := cborDec.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

var (
	codecMu sync.RWMutex
	// DefaultCodec is the codec used by platform channels until SetCodec is called.
	DefaultCodec MessageCodec = JsonCodec{}
)

// SetCodec replaces the codec used by all platform channels. The native side
// must be switched at the same time. Pass nil to restore JsonCodec.
func SetCodec(c MessageCodec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if c == nil {
		c = JsonCodec{}
	}
	DefaultCodec = c
}

func currentCodec() MessageCodec {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return DefaultCodec
}

// Standard errors for platform channel operations.
var (
	// ErrChannelNotFound indicates the requested platform channel does not exist.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound indicates the method is not implemented on the native side.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments indicates the arguments passed to the method were invalid.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable indicates no native bridge is installed.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")
)

// ChannelError represents an error returned from native code.
type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError creates a new ChannelError with the given code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}

// NewChannelErrorWithDetails creates a new ChannelError with additional details.
func NewChannelErrorWithDetails(code, message string, details any) *ChannelError {
	return &ChannelError{Code: code, Message: message, Details: details}
}
