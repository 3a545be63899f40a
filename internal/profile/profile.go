// Package profile builds synthetic identities from static reference tables.
package profile

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/enroll-cli/internal/config"
)

var (
	//go:embed data/names.txt
	defaultNames string
	//go:embed data/genders.txt
	defaultGenders string
	//go:embed data/dates.txt
	defaultDates string
	//go:embed data/phones.txt
	defaultPhones string
)

// Record is one synthetic identity.
type Record struct {
	Name   string
	Gender string // "Male" or "Female"
	DOB    string // dd/mm/yyyy
	Phone  string
}

// Replacer substitutes {name}, {gender}, {dob}, {phone} and {email} in step values and locators.
func (r Record) Replacer(email string) *strings.Replacer {
	return strings.NewReplacer(
		"{name}", r.Name,
		"{gender}", r.Gender,
		"{dob}", r.DOB,
		"{phone}", r.Phone,
		"{email}", email,
	)
}

// Tables are the read-only reference lists. Names[i] and Genders[i] describe the
// same identity.
type Tables struct {
	Names   []string
	Genders []string
	Dates   []string
	Phones  []string
}

// Load reads each configured table, falling back to the embedded default when the
// path is empty.
func Load(cfg config.ProfileConfig) (*Tables, error) {
	var t Tables
	var err error
	if t.Names, err = loadTable(cfg.NamesFile, defaultNames); err != nil {
		return nil, err
	}
	if t.Genders, err = loadTable(cfg.GendersFile, defaultGenders); err != nil {
		return nil, err
	}
	if t.Dates, err = loadTable(cfg.DatesFile, defaultDates); err != nil {
		return nil, err
	}
	if t.Phones, err = loadTable(cfg.PhonesFile, defaultPhones); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate enforces non-empty tables and index alignment of names and genders.
func (t *Tables) Validate() error {
	switch {
	case len(t.Names) == 0:
		return fmt.Errorf("names table is empty")
	case len(t.Dates) == 0:
		return fmt.Errorf("dates table is empty")
	case len(t.Phones) == 0:
		return fmt.Errorf("phones table is empty")
	case len(t.Names) != len(t.Genders):
		return fmt.Errorf("names (%d) and genders (%d) tables must be aligned", len(t.Names), len(t.Genders))
	}
	return nil
}

func loadTable(path, fallback string) ([]string, error) {
	if path == "" {
		return parseLines(strings.NewReader(fallback))
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path '%s': %w", path, err)
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file '%s': %w", expanded, err)
	}
	defer file.Close()

	lines, err := parseLines(file)
	if err != nil {
		return nil, fmt.Errorf("error reading table file '%s': %w", expanded, err)
	}
	return lines, nil
}

// parseLines returns trimmed lines, skipping blanks and # comments.
func parseLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Picker draws records. It is not safe for concurrent use; each engine instance owns one.
type Picker struct {
	tables *Tables
	rng    *rand.Rand
}

// NewPicker seeds a picker. A zero seed draws from the clock.
func NewPicker(t *Tables, seed int64) *Picker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Picker{
		tables: t,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
	}
}

// Pick draws name and gender by the same index, and date and phone independently.
func (p *Picker) Pick() Record {
	i := p.rng.IntN(len(p.tables.Names))
	return Record{
		Name:   p.tables.Names[i],
		Gender: GenderLabel(p.tables.Genders[i]),
		DOB:    FormatDOB(p.tables.Dates[p.rng.IntN(len(p.tables.Dates))]),
		Phone:  p.tables.Phones[p.rng.IntN(len(p.tables.Phones))],
	}
}

// GenderLabel maps a table code to the label forms display.
func GenderLabel(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "M", "MALE":
		return "Male"
	default:
		return "Female"
	}
}

// FormatDOB turns "ddmmyyyy" into "dd/mm/yyyy". Anything else is returned unchanged.
func FormatDOB(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) != 8 {
		return raw
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return raw[:2] + "/" + raw[2:4] + "/" + raw[4:]
}
