package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultDocumentIsClean(t *testing.T) {
	assert.Empty(t, Validate(Default(time.Now())))
}

func TestValidateBlankDocument(t *testing.T) {
	msgs := Validate(Blank(time.Now(), "INV-001"))
	assert.Equal(t, []string{MsgBusinessNameRequired, MsgClientNameRequired, MsgLineItemRequired}, msgs)
}

func TestValidateNegativeAmountsPerItem(t *testing.T) {
	doc := Default(time.Now())
	doc.LineItems = []LineItem{
		{ID: "1", Quantity: -1, UnitPrice: 10},
		{ID: "2", Quantity: 1, UnitPrice: 10},
		{ID: "3", Quantity: 1, UnitPrice: -5},
	}
	assert.Equal(t, []string{MsgNegativeAmounts, MsgNegativeAmounts}, Validate(doc))
}

func TestGatePolicyBlocks(t *testing.T) {
	cases := []struct {
		policy GatePolicy
		save   bool
		export bool
	}{
		{GateAdvisory, false, false},
		{GateSave, true, false},
		{GateExport, false, true},
		{GateAll, true, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			assert.Equal(t, tc.save, tc.policy.Blocks(OpSave))
			assert.Equal(t, tc.export, tc.policy.Blocks(OpExport))
		})
	}
}

func TestGatePolicyCheckReturnsValidationError(t *testing.T) {
	doc := Blank(time.Now(), "INV-9")
	err := GateAll.Check(OpExport, doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, OpExport, verr.Op)
	assert.Len(t, verr.Messages, 3)

	assert.NoError(t, GateAdvisory.Check(OpExport, doc))
}

func TestParseGatePolicy(t *testing.T) {
	p, err := ParseGatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, GateAdvisory, p)
	p, err = ParseGatePolicy("export")
	require.NoError(t, err)
	assert.Equal(t, GateExport, p)
	_, err = ParseGatePolicy("strict")
	assert.Error(t, err)
}
