package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "pending", input: "Pending", want: StatusPending},
		{name: "charged lower with spaces", input: "  charged ", want: StatusCharged},
		{name: "declined upper", input: "DECLINED", want: StatusDeclined},
		{name: "charge back spaced", input: "Charge Back", want: StatusChargeBack},
		{name: "charge back joined", input: "ChargeBack", want: StatusChargeBack},
		{name: "charge back double space", input: "charge  back", want: StatusChargeBack},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "Refunded", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status{}.Valid())
}

func TestStatusText(t *testing.T) {
	text, err := StatusChargeBack.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Charge Back", string(text))

	var s Status
	require.NoError(t, s.UnmarshalText([]byte("chargeback")))
	assert.Equal(t, StatusChargeBack, s)

	err = s.UnmarshalText([]byte("Refunded"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusChargeBack, s, "failed parse leaves the value alone")

	assert.Equal(t, StatusPending, MustParseStatus("pending"))
	assert.Panics(t, func() { MustParseStatus("Refunded") })
}
