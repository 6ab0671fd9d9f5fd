package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

func TestParsePolicy_FullDefinition(t *testing.T) {
	f := NewPolicyFactory()

	p, err := f.ParsePolicy(`{
		"id": "marriage",
		"category": "marriage",
		"name": "Marriage",
		"requires_certificate": true,
		"certificate_tolerance_days": 7,
		"min_advance_notice_days": 7,
		"total_days_granted_per_period": null,
		"max_consecutive_days": 12,
		"yearly_approved_request_quota": 1,
		"period_type": "fiscal_year",
		"fiscal_year_start": 4
	}`)
	require.NoError(t, err)

	assert.Equal(t, license.PolicyID("marriage"), p.ID)
	assert.Equal(t, license.CategoryMarriage, p.Category)
	assert.True(t, p.RequiresCertificate)
	require.NotNil(t, p.CertificateToleranceDays)
	assert.Equal(t, 7, *p.CertificateToleranceDays)
	assert.Nil(t, p.TotalDaysGrantedPerPeriod)
	require.NotNil(t, p.MaxConsecutiveDays)
	assert.Equal(t, 12, *p.MaxConsecutiveDays)
	assert.Equal(t, generic.PeriodFiscalYear, p.Period.Type)
	assert.Equal(t, time.April, p.Period.FiscalYearStartMonth)
}

func TestParsePolicy_Rejections(t *testing.T) {
	f := NewPolicyFactory()

	tests := []struct {
		name string
		json string
	}{
		{"not json", `{`},
		{"missing id", `{"category":"x","name":"X"}`},
		{"missing name", `{"id":"x","category":"x"}`},
		{"negative notice", `{"id":"x","category":"x","name":"X","min_advance_notice_days":-1}`},
		{"negative quota", `{"id":"x","category":"x","name":"X","yearly_approved_request_quota":-2}`},
		{"unknown period", `{"id":"x","category":"x","name":"X","period_type":"weekly"}`},
		{"certificate without tolerance", `{"id":"x","category":"x","name":"X","requires_certificate":true}`},
		{"immediate without certificate", `{"id":"x","category":"x","name":"X","requires_immediate_certificate":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParsePolicy(tt.json)
			assert.ErrorIs(t, err, generic.ErrMalformedPolicy)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestPresetCatalog_ParsesBackToDefaults(t *testing.T) {
	// GIVEN: The preset catalog rendered as JSON
	raw := PresetCatalogJSON()

	// WHEN: Parsing it back
	policies, err := NewPolicyFactory().ParseCatalog(raw)
	require.NoError(t, err)

	// THEN: Every preset survives unchanged
	assert.Equal(t, license.DefaultPolicies(), policies)
}

func TestParseCatalog_ReportsFailingEntry(t *testing.T) {
	_, err := NewPolicyFactory().ParseCatalog(`[
		{"id":"a","category":"a","name":"A"},
		{"id":"b","category":"b"}
	]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy 1 (b)")
	assert.ErrorIs(t, err, generic.ErrMalformedPolicy)
}
