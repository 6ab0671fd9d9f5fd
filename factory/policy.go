/*
Package factory converts JSON policy definitions into license.Policy.

PURPOSE:
  Lets administrators define or edit leave categories without code changes.
  The admin API, the seed catalog and tests all go through the same parser,
  so a policy stored by one path reads back identically through another.

JSON SCHEMA:
  {
    "id": "marriage",
    "category": "marriage",
    "name": "Marriage",
    "description": "Own marriage",
    "requires_certificate": true,
    "requires_immediate_certificate": false,
    "certificate_tolerance_days": 7,
    "min_advance_notice_days": 7,
    "total_days_granted_per_period": null,
    "max_consecutive_days": 12,
    "yearly_approved_request_quota": 1,
    "period_type": "calendar_year",
    "fiscal_year_start": 0
  }

  null (or absent) limit fields mean "no limit".

VALIDATION:
  Struct tags are checked with go-playground/validator, then the domain rules
  in license.Policy.Validate. Either failure wraps generic.ErrMalformedPolicy.

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(jsonString)

  // Whole preset catalog
  policies, err := f.ParseCatalog(factory.PresetCatalogJSON())

SEE ALSO:
  - license/types.go: Policy definition
  - license/policies.go: The preset catalog in Go
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy.
type PolicyJSON struct {
	ID                           string `json:"id" validate:"required,max=64"`
	Category                     string `json:"category" validate:"required,max=64"`
	Name                         string `json:"name" validate:"required,max=120"`
	Description                  string `json:"description,omitempty" validate:"max=500"`
	RequiresCertificate          bool   `json:"requires_certificate"`
	RequiresImmediateCertificate bool   `json:"requires_immediate_certificate"`
	CertificateToleranceDays     *int   `json:"certificate_tolerance_days" validate:"omitempty,min=0"`
	MinAdvanceNoticeDays         int    `json:"min_advance_notice_days" validate:"min=0"`
	TotalDaysGrantedPerPeriod    *int   `json:"total_days_granted_per_period" validate:"omitempty,min=0"`
	MaxConsecutiveDays           *int   `json:"max_consecutive_days" validate:"omitempty,min=0"`
	YearlyApprovedRequestQuota   *int   `json:"yearly_approved_request_quota" validate:"omitempty,min=0"`
	PeriodType                   string `json:"period_type,omitempty" validate:"omitempty,oneof=calendar_year fiscal_year"`
	FiscalYearStart              int    `json:"fiscal_year_start,omitempty" validate:"min=0,max=12"` // Month 1-12
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to license.Policy.
type PolicyFactory struct {
	validate *validator.Validate
}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{validate: validator.New()}
}

// ParsePolicy parses a JSON object into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (license.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return license.Policy{}, fmt.Errorf("%w: %v", generic.ErrMalformedPolicy, err)
	}
	return f.FromJSON(pj)
}

// ParseCatalog parses a JSON array of policies. The first invalid entry
// fails the whole catalog.
func (f *PolicyFactory) ParseCatalog(jsonStr string) ([]license.Policy, error) {
	var pjs []PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pjs); err != nil {
		return nil, fmt.Errorf("%w: %v", generic.ErrMalformedPolicy, err)
	}
	policies := make([]license.Policy, 0, len(pjs))
	for i, pj := range pjs {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d (%s): %w", i, pj.ID, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// FromJSON validates pj and converts it.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (license.Policy, error) {
	if err := f.validate.Struct(pj); err != nil {
		return license.Policy{}, fmt.Errorf("%w: %s", generic.ErrMalformedPolicy, describe(err))
	}
	if pj.RequiresCertificate && pj.CertificateToleranceDays == nil {
		return license.Policy{}, fmt.Errorf("%w: certificate_tolerance_days is required when a certificate is required", generic.ErrMalformedPolicy)
	}

	p := license.Policy{
		ID:                           license.PolicyID(pj.ID),
		Category:                     license.Category(pj.Category),
		Name:                         pj.Name,
		Description:                  pj.Description,
		RequiresCertificate:          pj.RequiresCertificate,
		RequiresImmediateCertificate: pj.RequiresImmediateCertificate,
		CertificateToleranceDays:     pj.CertificateToleranceDays,
		MinAdvanceNoticeDays:         pj.MinAdvanceNoticeDays,
		TotalDaysGrantedPerPeriod:    pj.TotalDaysGrantedPerPeriod,
		MaxConsecutiveDays:           pj.MaxConsecutiveDays,
		YearlyApprovedRequestQuota:   pj.YearlyApprovedRequestQuota,
		Period:                       parsePeriodConfig(pj.PeriodType, pj.FiscalYearStart),
	}
	if err := p.Validate(); err != nil {
		return license.Policy{}, err
	}
	return p, nil
}

// ToJSON is the inverse of FromJSON.
func ToJSON(p license.Policy) PolicyJSON {
	return PolicyJSON{
		ID:                           string(p.ID),
		Category:                     string(p.Category),
		Name:                         p.Name,
		Description:                  p.Description,
		RequiresCertificate:          p.RequiresCertificate,
		RequiresImmediateCertificate: p.RequiresImmediateCertificate,
		CertificateToleranceDays:     p.CertificateToleranceDays,
		MinAdvanceNoticeDays:         p.MinAdvanceNoticeDays,
		TotalDaysGrantedPerPeriod:    p.TotalDaysGrantedPerPeriod,
		MaxConsecutiveDays:           p.MaxConsecutiveDays,
		YearlyApprovedRequestQuota:   p.YearlyApprovedRequestQuota,
		PeriodType:                   string(p.Period.Type),
		FiscalYearStart:              int(p.Period.FiscalYearStartMonth),
	}
}

// PresetCatalogJSON renders license.DefaultPolicies as a JSON array.
func PresetCatalogJSON() string {
	presets := license.DefaultPolicies()
	out := make([]PolicyJSON, 0, len(presets))
	for _, p := range presets {
		out = append(out, ToJSON(p))
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return string(data)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePeriodConfig(periodType string, fiscalStart int) generic.PeriodConfig {
	switch periodType {
	case string(generic.PeriodFiscalYear):
		return generic.PeriodConfig{
			Type:                 generic.PeriodFiscalYear,
			FiscalYearStartMonth: time.Month(fiscalStart),
		}
	default:
		// Empty stays empty: the zero PeriodConfig is a calendar year.
		return generic.PeriodConfig{Type: generic.PeriodType(periodType)}
	}
}

// describe flattens validator errors into "field: tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", strings.ToLower(e.Field()), e.Tag(), e.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(e.Field()), e.Tag()))
	}
	return strings.Join(parts, ", ")
}
