package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/tally/internal/aggregate"
)

func TestLoadCSVSample(t *testing.T) {
	records, err := LoadCSV("testdata/subscription_data.csv")
	require.NoError(t, err)
	require.Len(t, records, 12)

	first := records[0]
	assert.Equal(t, "CUST-001", first.CustomerID)
	assert.Equal(t, "Enterprise", first.PlanTier)
	assert.Equal(t, aggregate.Cents(2500000), first.MonthlyRevenue)
	assert.True(t, first.AutoRenew)
	assert.Equal(t, []string{"sso", "audit_log"}, first.CustomFeatures)

	assert.True(t, records[6].AutoRenew, "T is truthy")
	assert.Equal(t, []string{"sso"}, records[6].CustomFeatures)
	assert.False(t, records[7].AutoRenew, "0 is falsy")
	assert.True(t, records[9].AutoRenew, "1 is truthy")
	assert.Zero(t, records[11].OutstandingBalance, "unparseable numbers coerce to zero")

	snap := aggregate.Compute(records)
	mrr, ok := snap.TotalActiveMRR()
	require.True(t, ok)
	whole, _ := mrr.Whole()
	assert.Equal(t, int64(127100), whole)

	enterprise, _ := snap.EnterpriseCount()
	professional, _ := snap.ProfessionalCount()
	assert.Equal(t, int64(4), enterprise)
	assert.Equal(t, int64(5), professional)

	atRisk, ok := snap.NonRenewingActiveMRR()
	require.True(t, ok)
	assert.Equal(t, aggregate.Cents(4560000), atRisk)
}

func TestReadCSVHeaderAliasesAndOrder(t *testing.T) {
	data := "Status,MRR,Plan\nactive,10.5,Enterprise\nactive,abc,Professional\n"
	records, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, aggregate.Cents(1050), records[0].MonthlyRevenue)
	assert.Zero(t, records[1].MonthlyRevenue)
	assert.Equal(t, "Professional", records[1].PlanTier)
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("customer_id,status\nC1,active\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("testdata/does-not-exist.csv")
	assert.Error(t, err)
}
