package conn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionError(t *testing.T) {
	errCause := errors.New("no rows in result set")

	tests := []struct {
		name       string
		err        *ConnectionError
		wantMsg    string
		wantConfig bool
	}{
		{
			name:    "given establish failure, then describes connection failure",
			err:     NewConnectionError("mysql", KindEstablish, errCause),
			wantMsg: "mysql: failed to establish connection: no rows in result set",
		},
		{
			name:       "given configuration failure, then describes configuration failure",
			err:        NewConnectionError("postgresql", KindConfiguration, errCause),
			wantMsg:    "postgresql: couldn't set up connection configuration: no rows in result set",
			wantConfig: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.ErrorIs(t, tt.err, errCause)
			assert.Equal(t, tt.wantConfig, IsConfigurationError(tt.err))
			assert.Equal(t, tt.wantConfig, IsConfigurationError(fmt.Errorf("startup: %w", tt.err)))
		})
	}
}

func TestIsConfigurationError_Other(t *testing.T) {
	assert.False(t, IsConfigurationError(nil))
	assert.False(t, IsConfigurationError(errors.New("boom")))
}

func TestConnectionErrorKind_String(t *testing.T) {
	assert.Equal(t, "establish", KindEstablish.String())
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "ConnectionErrorKind(9)", ConnectionErrorKind(9).String())
}
