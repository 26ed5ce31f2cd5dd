package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name string         `json:"name" validate:"required"`
	Age  int            `json:"age"  validate:"gte=18"`
	Data map[string]any `json:"data"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		requestBody string
		wantErr     error
		errContains string
	}{
		{name: "valid json", requestBody: `{"name": "test", "age": 30}`},
		{name: "invalid json", requestBody: `{"name": "test", "age": 30,}`, errContains: "invalid character"},
		{name: "empty body", requestBody: "", wantErr: ErrEmptyBody},
		{name: "unknown field", requestBody: `{"name": "test", "admin": true}`, errContains: "unknown field"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tc.requestBody))

			var target sampleRequest
			err := DecodeJSON(req, &target)

			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.errContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
			default:
				require.NoError(t, err)
				assert.Equal(t, "test", target.Name)
				assert.Equal(t, 30, target.Age)
			}
		})
	}
}

func TestDecodeJSON_KeepsNumbers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test",
		bytes.NewBufferString(`{"name":"n","age":20,"data":{"big":9007199254740993}}`))

	var target sampleRequest
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, json.Number("9007199254740993"), target.Data["big"])
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecodeJSONWithReadError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", errorReader{})
	var target sampleRequest
	err := DecodeJSON(req, &target)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

type selfValidating struct{ ok bool }

func (s *selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&sampleRequest{Name: "a", Age: 18}))
	assert.Error(t, ValidateRequest(&sampleRequest{Age: 18}))
	assert.Error(t, ValidateRequest(&sampleRequest{Name: "a", Age: 3}))

	assert.NoError(t, ValidateRequest(&selfValidating{ok: true}))
	assert.Error(t, ValidateRequest(&selfValidating{}))
}
