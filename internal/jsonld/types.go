package jsonld

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// JobPosting holds the schema.org JobPosting fields the connectors map.
type JobPosting struct {
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	URL                    string          `json:"url"`
	DatePosted             string          `json:"datePosted"`
	ValidThrough           string          `json:"validThrough"`
	EmploymentType         StringOrList    `json:"employmentType"`
	HiringOrganization     Organization    `json:"hiringOrganization"`
	ExperienceRequirements StringOrList    `json:"experienceRequirements"`
	OccupationalCategory   StringOrList    `json:"occupationalCategory"`
	JobLocation            Places          `json:"jobLocation"`
	BaseSalary             *MonetaryAmount `json:"baseSalary"`
}

// ListSeparator joins multi-valued fields.
const ListSeparator = ", "

// StringOrList accepts either a bare string or a list of strings. Objects
// contribute their name (or description) so partial schema use still
// yields text.
type StringOrList []string

func (s *StringOrList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = nil
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = appendText(nil, raw)
	return nil
}

func appendText(out []string, value any) []string {
	switch v := value.(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	case float64:
		out = append(out, formatNumber(v))
	case []any:
		for _, item := range v {
			out = appendText(out, item)
		}
	case map[string]any:
		if name, ok := v["name"]; ok {
			return appendText(out, name)
		}
		if desc, ok := v["description"]; ok {
			return appendText(out, desc)
		}
	}
	return out
}

func (s StringOrList) Join(sep string) string {
	return strings.Join(s, sep)
}

func (s StringOrList) String() string {
	return s.Join(ListSeparator)
}

// Organization is a hiringOrganization given as an object or a bare name.
type Organization struct {
	Name string `json:"name"`
}

func (o *Organization) UnmarshalJSON(data []byte) error {
	*o = Organization{}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Name = strings.Join(appendText(nil, raw), " ")
	return nil
}

type PostalAddress struct {
	AddressRegion   string `json:"addressRegion"`
	AddressLocality string `json:"addressLocality"`
	StreetAddress   string `json:"streetAddress"`
	AddressCountry  any    `json:"addressCountry"`
}

type Place struct {
	Address PostalAddress
}

func (p *Place) UnmarshalJSON(data []byte) error {
	*p = Place{}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		p.Address.StreetAddress = strings.TrimSpace(text)
		return nil
	}
	var shape struct {
		Address json.RawMessage `json:"address"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	if len(shape.Address) == 0 {
		return nil
	}
	if err := json.Unmarshal(shape.Address, &text); err == nil {
		p.Address.StreetAddress = strings.TrimSpace(text)
		return nil
	}
	return json.Unmarshal(shape.Address, &p.Address)
}

// Label renders region and locality separated by a space, falling back to
// a free-form street address.
func (p Place) Label() string {
	parts := make([]string, 0, 2)
	for _, part := range []string{p.Address.AddressRegion, p.Address.AddressLocality} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(p.Address.StreetAddress)
	}
	return strings.Join(parts, " ")
}

// Places is a jobLocation given as a single place or an array of them.
type Places []Place

func (ps *Places) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*ps = nil
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var list []Place
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*ps = list
		return nil
	}
	var single Place
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*ps = Places{single}
	return nil
}

// Label joins the distinct labels of every place.
func (ps Places) Label() string {
	seen := map[string]struct{}{}
	var labels []string
	for _, place := range ps {
		label := place.Label()
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return strings.Join(labels, ListSeparator)
}

type MonetaryAmount struct {
	Currency string            `json:"currency"`
	Value    QuantitativeValue `json:"value"`
}

func (m *MonetaryAmount) UnmarshalJSON(data []byte) error {
	*m = MonetaryAmount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		// free text such as "negotiable" carries no bounds
		return nil
	}
	type plain MonetaryAmount
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MonetaryAmount(p)
	return nil
}

type QuantitativeValue struct {
	MinValue Number `json:"minValue"`
	MaxValue Number `json:"maxValue"`
	Value    Number `json:"value"`
	UnitText string `json:"unitText"`
}

func (q *QuantitativeValue) UnmarshalJSON(data []byte) error {
	*q = QuantitativeValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		// a bare amount
		return json.Unmarshal(data, &q.Value)
	}
	type plain QuantitativeValue
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*q = QuantitativeValue(p)
	return nil
}

// Number is a JSON number or numeric string. Blank means absent.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = ""
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(formatNumber(f))
	return nil
}

func (n Number) Present() bool {
	return strings.TrimSpace(string(n)) != ""
}

func (n Number) equal(other Number) bool {
	a, errA := strconv.ParseFloat(string(n), 64)
	b, errB := strconv.ParseFloat(string(other), 64)
	if errA == nil && errB == nil {
		return a == b
	}
	return n == other
}

// FormatSalary renders "min-max unit", "min unit" when the bounds match or
// only one is present, and "" when the amount carries no bound.
func FormatSalary(amount *MonetaryAmount) string {
	if amount == nil {
		return ""
	}
	value := amount.Value
	low, high := value.MinValue, value.MaxValue
	if !low.Present() && !high.Present() {
		low, high = value.Value, value.Value
	}

	var figure string
	switch {
	case low.Present() && high.Present() && !low.equal(high):
		figure = string(low) + "-" + string(high)
	case low.Present():
		figure = string(low)
	case high.Present():
		figure = string(high)
	default:
		return ""
	}
	return strings.TrimSpace(figure + " " + strings.TrimSpace(value.UnitText))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
