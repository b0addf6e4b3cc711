package goAccounts

// displayName derives a user name from a creation profile. LinkedIn style
// profiles carry separate first and last names, optionally localized.
func displayName(p *Profile) string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	if p.FirstName == nil {
		return ""
	}

	first, last := p.FirstName, p.LastName
	if loc := first.PreferredLocale; loc != nil && loc.Language != "" && loc.Country != "" && first.Localized != nil {
		key := loc.Language + "_" + loc.Country
		if fn := first.Localized[key]; fn != "" {
			if last != nil {
				if ln := last.Localized[key]; ln != "" {
					return fn + " " + ln
				}
			}
			return fn
		}
	}

	if last == nil || last.Plain == "" {
		return first.Plain
	}
	return first.Plain + " " + last.Plain
}
