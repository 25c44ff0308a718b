package etl

import (
	"fmt"
	"strconv"
	"strings"
)

// Rejection reasons, reported per row in the run summary.
const (
	ReasonMissingField  = "MissingRequiredField"
	ReasonTypeCoercion  = "TypeCoercionFailed"
	ReasonOutOfDomain   = "OutOfDomain"
	ReasonDuplicateKey  = "DuplicateKeyInSource"
	ReasonUnknownParent = "UnknownPatientReference"
)

// Rejection is one dropped source row with the first rule it violated.
type Rejection struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s line %d: %s %s (%s)", r.Source, r.Line, r.Field, r.Reason, r.Detail)
}

// Record is a validated row: every declared field parsed to its target type.
// Optional fields that were blank are simply absent.
type Record struct {
	Line    int
	Strings map[string]string
	Ints    map[string]int
	Floats  map[string]float64
}

// Str returns a required string field. Validation guarantees presence.
func (r Record) Str(name string) string { return r.Strings[name] }

// OptStr returns an optional string field, nil when blank in the source.
func (r Record) OptStr(name string) *string {
	if v, ok := r.Strings[name]; ok {
		return &v
	}
	return nil
}

// Int returns a required integer field.
func (r Record) Int(name string) int { return r.Ints[name] }

// Float returns a required float field.
func (r Record) Float(name string) float64 { return r.Floats[name] }

// SourceReport collects the outcome of validating one source file.
type SourceReport struct {
	Source     string
	RowsRead   int
	Records    []Record
	Rejections []Rejection
	Warnings   []string

	// Rejection reason breakdown.
	MissingField int
	TypeErrors   int
	OutOfDomain  int
}

// RejectionRate is the fraction of read rows that failed validation.
func (r *SourceReport) RejectionRate() float64 {
	if r.RowsRead == 0 {
		return 0
	}
	return float64(len(r.Rejections)) / float64(r.RowsRead)
}

func (r *SourceReport) reject(rej Rejection) {
	r.Rejections = append(r.Rejections, rej)
	switch rej.Reason {
	case ReasonMissingField:
		r.MissingField++
	case ReasonTypeCoercion:
		r.TypeErrors++
	case ReasonOutOfDomain:
		r.OutOfDomain++
	}
}

// ValidateSource applies the schema's field rules to every row. A row is
// rejected on its first violation; surviving rows come back fully typed, in
// file order. Coherence checks that do not invalidate a row (BPM ordering,
// implausible calorie burn rates) are reported as warnings.
func ValidateSource(schema SourceSchema, rows []Row) *SourceReport {
	report := &SourceReport{Source: schema.Name, RowsRead: len(rows)}

	for _, row := range rows {
		rec, rej := validateRow(schema, row)
		if rej != nil {
			report.reject(*rej)
			continue
		}
		if w := coherenceWarnings(schema.Name, rec); len(w) > 0 {
			report.Warnings = append(report.Warnings, w...)
		}
		report.Records = append(report.Records, rec)
	}
	return report
}

func validateRow(schema SourceSchema, row Row) (Record, *Rejection) {
	rec := Record{
		Line:    row.Line,
		Strings: make(map[string]string),
		Ints:    make(map[string]int),
		Floats:  make(map[string]float64),
	}

	for _, rule := range schema.Fields {
		raw, present := row.Get(rule.Name)
		if !present || raw == "" {
			if rule.Required {
				return rec, &Rejection{
					Source: schema.Name,
					Line:   row.Line,
					Field:  rule.Name,
					Reason: ReasonMissingField,
					Detail: "required value is blank",
				}
			}
			continue
		}

		switch rule.Kind {
		case KindInt:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return rec, &Rejection{
					Source: schema.Name,
					Line:   row.Line,
					Field:  rule.Name,
					Reason: ReasonTypeCoercion,
					Detail: fmt.Sprintf("%q is not an integer", raw),
				}
			}
			if rule.Bounded && (float64(n) < rule.Min || float64(n) > rule.Max) {
				return rec, outOfDomain(schema.Name, row.Line, rule, raw)
			}
			rec.Ints[rule.Name] = n

		case KindFloat:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return rec, &Rejection{
					Source: schema.Name,
					Line:   row.Line,
					Field:  rule.Name,
					Reason: ReasonTypeCoercion,
					Detail: fmt.Sprintf("%q is not a number", raw),
				}
			}
			if rule.Bounded && (f < rule.Min || f > rule.Max) {
				return rec, outOfDomain(schema.Name, row.Line, rule, raw)
			}
			rec.Floats[rule.Name] = f

		case KindString:
			if len(rule.Enum) > 0 && !contains(rule.Enum, raw) {
				return rec, outOfDomain(schema.Name, row.Line, rule, raw)
			}
			if rule.Pattern != nil && !rule.Pattern.MatchString(raw) {
				return rec, outOfDomain(schema.Name, row.Line, rule, raw)
			}
			rec.Strings[rule.Name] = raw
		}
	}

	return rec, nil
}

func outOfDomain(source string, line int, rule FieldRule, raw string) *Rejection {
	var detail string
	switch {
	case len(rule.Enum) > 0:
		detail = fmt.Sprintf("%q not in {%s}", raw, strings.Join(rule.Enum, ", "))
	case rule.Bounded:
		detail = fmt.Sprintf("%s outside [%v, %v]", raw, rule.Min, rule.Max)
	default:
		detail = fmt.Sprintf("%q does not match expected format", raw)
	}
	return &Rejection{Source: source, Line: line, Field: rule.Name, Reason: ReasonOutOfDomain, Detail: detail}
}

// coherenceWarnings flags rows that pass field validation but look
// physiologically suspect. Warned rows still load.
func coherenceWarnings(source string, rec Record) []string {
	if source != SourceGym {
		return nil
	}
	var warnings []string
	maxBPM, avgBPM, restBPM := rec.Int("max_bpm"), rec.Int("avg_bpm"), rec.Int("resting_bpm")
	if !(maxBPM >= avgBPM && avgBPM >= restBPM) {
		warnings = append(warnings, fmt.Sprintf(
			"gym line %d: inconsistent BPM ordering max=%d avg=%d resting=%d",
			rec.Line, maxBPM, avgBPM, restBPM))
	}
	duration := rec.Float("session_duration_hours")
	if duration > 0 {
		rate := float64(rec.Int("calories_burned")) / duration
		if rate < 200 || rate > 800 {
			warnings = append(warnings, fmt.Sprintf(
				"gym line %d: implausible burn rate %.0f kcal/hour", rec.Line, rate))
		}
	}
	return warnings
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
