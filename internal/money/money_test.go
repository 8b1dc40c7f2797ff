package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "integer",
			input: "100",
			want:  "100",
		},
		{
			name:  "two decimal places",
			input: "12.50",
			want:  "12.5",
		},
		{
			name:  "negative fraction",
			input: "-0.003",
			want:  "-0.003",
		},
		{
			name:    "garbage",
			input:   "Price: 100",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, which float64 cannot do.
	sum := MustParse("0.1").Add(MustParse("0.2"))
	assert.Equal(t, 0, sum.Cmp(MustParse("0.3")))

	// Repeated addition stays exact.
	total := Zero()
	for i := 0; i < 1000; i++ {
		total = total.Add(MustParse("0.001"))
	}
	assert.Equal(t, 0, total.Cmp(FromInt(1)))
}

func TestDivAndMul(t *testing.T) {
	// 100 / 3 * 3 round-trips exactly on rationals.
	d := FromInt(100).DivInt(3).Mul(FromInt(3))
	assert.Equal(t, 0, d.Cmp(FromInt(100)))
}

func TestRound(t *testing.T) {
	tests := []struct {
		name  string
		input string
		prec  int
		want  string
	}{
		{name: "round down", input: "1.234", prec: 2, want: "1.23"},
		{name: "round up", input: "1.236", prec: 2, want: "1.24"},
		{name: "tie away from zero", input: "1.235", prec: 2, want: "1.24"},
		{name: "negative tie away from zero", input: "-1.235", prec: 2, want: "-1.24"},
		{name: "to integer", input: "2.5", prec: 0, want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.input).Round(tt.prec).String())
		})
	}
}

func TestFromFloat(t *testing.T) {
	assert.Equal(t, "0.27", FromFloat(0.265+0.005, 2).String())
	assert.Equal(t, "0.8", FromFloat(0.8, 2).String())
	assert.Equal(t, "0", FromFloat(0, 4).String())
}

func TestStringFixed(t *testing.T) {
	assert.Equal(t, "100.00", FromInt(100).StringFixed(2))
	assert.Equal(t, "0.333", FromInt(1).DivInt(3).StringFixed(3))
}

func TestSignHelpers(t *testing.T) {
	assert.True(t, Zero().IsZero())
	assert.False(t, Zero().IsNegative())
	assert.True(t, MustParse("-5").IsNegative())
	assert.Equal(t, 1, FromInt(7).Sign())
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Amount Dec `json:"amount"`
	}

	in := payload{Amount: MustParse("60.50")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":"60.5"}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 0, out.Amount.Cmp(in.Amount))

	// Bare numbers are also accepted.
	var fromNumber payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.25}`), &fromNumber))
	assert.Equal(t, 0, fromNumber.Amount.Cmp(MustParse("12.25")))
}

func TestZeroValueIsUsable(t *testing.T) {
	var d Dec
	assert.True(t, d.IsZero())
	assert.Equal(t, "0", d.String())
	assert.Equal(t, 0, d.Add(FromInt(3)).Cmp(FromInt(3)))
}
