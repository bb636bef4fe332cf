package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("intake", errBoom), KindValidation},
		{"wrapped not found", fmt.Errorf("outer: %w", NotFound("lookup", errBoom)), KindNotFound},
		{"plain error", errBoom, KindInternal},
		{"signature", Signature("webhook", errBoom), KindSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.ErrorIs(t, tt.err, errBoom)
		})
	}
}

func TestNew_NilPassthrough(t *testing.T) {
	assert.NoError(t, New(KindConsistency, "op", nil))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "intake: boom", Consistency("intake", errBoom).Error())
	assert.Equal(t, "boom", (&Error{Kind: KindInternal, Err: errBoom}).Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindSignature))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConsistency))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindExternalService))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
	assert.Equal(t, "consistency", KindConsistency.String())
}
