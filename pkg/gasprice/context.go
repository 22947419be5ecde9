package gasprice

import "strings"

// ContextItem is one entry of a geocoder's hierarchical context, e.g.
// {"id": "region.1234", "text": "Texas", "short_code": "US-TX"}.
type ContextItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code,omitempty"`
}

func (c ContextItem) kind() string {
	kind, _, _ := strings.Cut(c.ID, ".")
	return kind
}

// ParseLocationContext extracts a country and region from geocoder context
// items. It returns nil when no country can be determined.
func ParseLocationContext(items []ContextItem) *LocationContext {
	var country, region string

	for _, item := range items {
		switch item.kind() {
		case "country":
			if country != "" {
				continue
			}
			if code := strings.TrimSpace(item.ShortCode); code != "" {
				code, _, _ = strings.Cut(code, "-")
				country = strings.ToUpper(code)
			} else {
				country = strings.TrimSpace(item.Text)
			}
		case "region":
			if region == "" {
				region = strings.TrimSpace(item.Text)
			}
		}
	}

	if country == "" || region == "" {
		for _, item := range items {
			c, r, ok := splitSubdivision(item.ShortCode)
			if !ok {
				continue
			}
			if country == "" {
				country = c
			}
			if region == "" && c == country {
				region = r
			}
			break
		}
	}

	if country == "" {
		return nil
	}
	return &LocationContext{Country: country, Region: region}
}

// splitSubdivision splits "us-ca" into ("US", "California"). Unknown
// subdivision codes are returned upper-cased.
func splitSubdivision(code string) (country, region string, ok bool) {
	c, r, found := strings.Cut(strings.TrimSpace(code), "-")
	if !found || c == "" || r == "" {
		return "", "", false
	}
	country = strings.ToUpper(c)
	full := country + "-" + strings.ToUpper(r)
	if name, known := subdivisionNames[full]; known {
		return country, name, true
	}
	return country, strings.ToUpper(r), true
}
