/*
policies.go - Preset leave policies

PURPOSE:
  The standard category catalog an organization starts from. Administrators
  edit or retire these through the policy admin path; the engine only reads
  them through a Catalog.

NOTABLE PRESETS:
  Vacation:   No certificate, 2 days notice, 2 approved requests a year.
              Total days come from seniority (entitlement.go), not the policy.
  Sick leave: Certificate within 1 day, no notice.
  Marriage:   7 days notice, at most 12 consecutive days, once a year.
  Study:      24 days per period, at most 4 in a row.

EXAMPLE:
  catalog := license.NewMemoryCatalog(license.DefaultPolicies()...)

SEE ALSO:
  - factory/policy.go: The same policies as JSON definitions
  - catalog.go: Catalog implementations
*/
package license

// =============================================================================
// DEFAULT CATALOG
// =============================================================================

// DefaultPolicies returns the preset catalog. Policy IDs equal their category.
func DefaultPolicies() []Policy {
	return []Policy{
		preset(CategoryVacation, "Vacation", "Annual rest days", false, nil, 2, nil, nil, Limit(2)),
		preset(CategoryBirth, "Birth of a child", "Childcare leave", true, Limit(3), 0, nil, Limit(2), Limit(2)),
		preset(CategoryStudy, "Study", "Exams and coursework", true, Limit(6), 3, Limit(24), Limit(4), nil),
		preset(CategoryMaternity, "Maternity", "Maternity leave", true, Limit(7), 0, Limit(90), nil, Limit(2)),
		preset(CategoryPrenatalCheckup, "Prenatal checkup", "Medical checkups", true, Limit(2), 3, nil, Limit(1), nil),
		preset(CategoryWorkAccident, "Work accident", "Workplace accident", true, Limit(1), 0, nil, nil, nil),
		preset(CategorySickLeave, "Sick leave", "Illness", true, Limit(1), 0, nil, nil, nil),
		preset(CategoryMarriage, "Marriage", "Own marriage", true, Limit(7), 7, nil, Limit(12), Limit(1)),
		preset(CategoryPremarital, "Premarital procedures", "Civil registry procedures", true, Limit(0), 7, nil, Limit(1), Limit(1)),
		preset(CategoryChildMarriage, "Child's marriage", "Marriage of a child", true, Limit(7), 7, nil, Limit(1), Limit(2)),
		preset(CategoryFamilyAssistance, "Family assistance", "Caring for relatives", true, Limit(3), 0, Limit(30), nil, nil),
		preset(CategoryBereavementA, "Bereavement (A)", "First-degree bereavement", true, Limit(7), 0, nil, Limit(6), nil),
		preset(CategoryBereavementB, "Bereavement (B)", "Second-degree bereavement", true, Limit(5), 0, nil, Limit(4), nil),
		preset(CategoryBloodDonation, "Blood donation", "Donating blood", true, Limit(1), 0, nil, Limit(1), Limit(6)),
		preset(CategoryRelocation, "Relocation", "Moving house", true, Limit(1), 1, nil, Limit(2), Limit(2)),
		preset(CategoryPublicDuty, "Public duty", "Civic obligations", true, Limit(2), 1, nil, Limit(1), nil),
		preset(CategoryMonthlyHour, "Monthly hour", "Monthly personal hour", false, nil, 1, nil, Limit(1), Limit(12)),
		preset(CategoryBirthday, "Birthday", "Birthday day off", false, nil, 2, Limit(1), Limit(1), Limit(1)),
		preset(CategoryUnionMeeting, "Union meeting", "Scheduled union meeting", true, Limit(0), 2, nil, Limit(1), Limit(52)),
		preset(CategoryUnionRepresentative, "Union representative", "Union representative duties", true, Limit(0), 0, nil, Limit(1), nil),
		preset(CategoryExtraordinaryMeeting, "Extraordinary meeting", "Urgent meetings", true, Limit(0), 0, nil, Limit(1), nil),
		preset(CategoryOther, "Other", "Unlisted reasons", true, Limit(0), 0, nil, nil, nil),
	}
}

func preset(cat Category, name, desc string, certificate bool, tolerance *int, notice int, total, consecutive, quota *int) Policy {
	return Policy{
		ID:                         PolicyID(cat),
		Category:                   cat,
		Name:                       name,
		Description:                desc,
		RequiresCertificate:        certificate,
		CertificateToleranceDays:   tolerance,
		MinAdvanceNoticeDays:       notice,
		TotalDaysGrantedPerPeriod:  total,
		MaxConsecutiveDays:         consecutive,
		YearlyApprovedRequestQuota: quota,
	}
}
