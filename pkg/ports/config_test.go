package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    PortMap
		wantErr bool
	}{
		{spec: "0=on, 1=off, 3=off", want: PortMap{0: true, 1: false, 3: false}},
		{spec: "2:disabled,4:Enabled", want: PortMap{2: false, 4: true}},
		{spec: "1=false,", want: PortMap{1: false}},
		{spec: "", want: PortMap{}},
		{spec: "1=maybe", wantErr: true},
		{spec: "1=off, 1=on", wantErr: true},
		{spec: "one=off", wantErr: true},
		{spec: "1 off", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePortSpec(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePortConfig(t *testing.T) {
	got, err := ParsePortConfig([]byte(`{"1": false, " 3 ": true}`))
	require.NoError(t, err)
	assert.Equal(t, PortMap{1: false, 3: true}, got)

	_, err = ParsePortConfig([]byte(`{"a": false}`))
	assert.Error(t, err)

	_, err = ParsePortConfig([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestPortMap(t *testing.T) {
	m := PortMap{3: false, 0: true, 1: false}
	assert.True(t, m.Enabled(0))
	assert.False(t, m.Enabled(1))
	assert.True(t, m.Enabled(7), "missing ports are enabled")
	assert.Equal(t, 2, m.Disabled())
	assert.Equal(t, "0=on, 1=off, 3=off", m.String())
}
