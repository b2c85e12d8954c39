package asmfmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatSubstitutesOperands(t *testing.T) {
	out, err := Format("add $rD, $rS", []Operand{
		{Name: "rD", Value: "R1"},
		{Name: "rS", Value: "R2"},
	})
	require.NoError(t, err)
	require.Equal(t, "add R1, R2", out)
}

func TestFormatNoPlaceholders(t *testing.T) {
	out, err := Format("nop", nil)
	require.NoError(t, err)
	require.Equal(t, "nop", out)
}

func TestFormatUnknownPlaceholderErrors(t *testing.T) {
	_, err := Format("add $rD, $rS", []Operand{{Name: "rD", Value: "R1"}})
	require.Error(t, err)
}

func TestFormatLiteralDollarWithoutName(t *testing.T) {
	out, err := Format("price: $$", nil)
	require.NoError(t, err)
	require.Equal(t, "price: $$", out)
}

func TestFormatUint(t *testing.T) {
	require.Equal(t, "42", FormatUint(42))
}
