// Package agent contains the LLM-driven site interactor: a synthetic
// identity vault, the page analyzer that turns observations into
// actions, and the state-machine controller that drives one site from
// load to wallet extraction.
package agent

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// PasswordVariant names a password format constraint. Sites disagree on
// password rules, so the vault carries one password per format and the
// analyzer picks by the form's stated constraint.
type PasswordVariant string

const (
	PasswordDefault  PasswordVariant = "default"
	PasswordDigits8  PasswordVariant = "digits_8"
	PasswordDigits12 PasswordVariant = "digits_12"
	PasswordSimple10 PasswordVariant = "simple_10"
)

// Identity is one synthetic registration profile. All values are fake;
// the SSN and card number are deliberately invalid.
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	DOB       string `json:"dob"`
	FakeSSN   string `json:"ssn"`
	FakeCC    string `json:"credit_card"`
	Username  string `json:"username"`

	Passwords map[PasswordVariant]string `json:"passwords"`
}

// Password returns the variant, falling back to default.
func (id *Identity) Password(v PasswordVariant) string {
	if p, ok := id.Passwords[v]; ok {
		return p
	}
	return id.Passwords[PasswordDefault]
}

// PromptJSON renders the identity for injection into the fill prompt.
func (id *Identity) PromptJSON() string {
	data, _ := json.MarshalIndent(id, "", "  ")
	return string(data)
}

// FieldValues returns every scalar value of the identity, used to detect
// which PII the agent actually submitted by comparing typed text.
func (id *Identity) FieldValues() map[string]string {
	out := map[string]string{
		"first_name":  id.FirstName,
		"last_name":   id.LastName,
		"email":       id.Email,
		"phone":       id.Phone,
		"address":     id.Address,
		"city":        id.City,
		"state":       id.State,
		"zip":         id.Zip,
		"dob":         id.DOB,
		"ssn":         id.FakeSSN,
		"credit_card": id.FakeCC,
		"username":    id.Username,
	}
	for v, p := range id.Passwords {
		out["password_"+string(v)] = p
	}
	return out
}

var (
	firstNames = []string{"Michael", "Sarah", "David", "Jennifer", "James", "Emily", "Robert", "Jessica"}
	lastNames  = []string{"Anderson", "Mitchell", "Carter", "Bennett", "Parker", "Collins", "Hayes", "Brooks"}
	mailHosts  = []string{"gmail.com", "outlook.com", "yahoo.com"}
	streets    = []string{"Oak", "Maple", "Cedar", "Elm", "Pine", "Birch"}
	cities     = [][3]string{
		{"Columbus", "OH", "43215"},
		{"Austin", "TX", "78701"},
		{"Denver", "CO", "80202"},
		{"Phoenix", "AZ", "85001"},
		{"Charlotte", "NC", "28202"},
	}
)

// NewIdentity draws a fresh synthetic profile.
func NewIdentity(r *rand.Rand) *Identity {
	first := firstNames[r.Intn(len(firstNames))]
	last := lastNames[r.Intn(len(lastNames))]
	num := 100 + r.Intn(900)
	loc := cities[r.Intn(len(cities))]

	year := 1975 + r.Intn(25)
	month := 1 + r.Intn(12)
	day := 1 + r.Intn(28)

	base := fmt.Sprintf("%s%s%d", strings.ToLower(first), strings.ToLower(last), num)

	return &Identity{
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s@%s", base, mailHosts[r.Intn(len(mailHosts))]),
		Phone:     fmt.Sprintf("+1%d%07d", 200+r.Intn(700), r.Intn(10000000)),
		Address:   fmt.Sprintf("%d %s Street", 100+r.Intn(8900), streets[r.Intn(len(streets))]),
		City:      loc[0],
		State:     loc[1],
		Zip:       loc[2],
		DOB:       fmt.Sprintf("%04d-%02d-%02d", year, month, day),
		FakeSSN:   fmt.Sprintf("900-%02d-%04d", r.Intn(100), r.Intn(10000)),
		FakeCC:    fmt.Sprintf("41111111111%04d", r.Intn(10000)),
		Username:  base,
		Passwords: map[PasswordVariant]string{
			PasswordDefault:  fmt.Sprintf("%s%s!%d", first[:3], last[:3], 1000+r.Intn(9000)),
			PasswordDigits8:  fmt.Sprintf("%08d", r.Intn(100000000)),
			PasswordDigits12: fmt.Sprintf("%012d", r.Int63n(1000000000000)),
			PasswordSimple10: fmt.Sprintf("%s%06d", strings.ToLower(first[:4]), r.Intn(1000000)),
		},
	}
}

// Vault hands out identities, one per site.
type Vault struct {
	rng *rand.Rand
}

// NewVault seeds the vault. Zero seed uses the clock.
func NewVault(seed int64) *Vault {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Vault{rng: rand.New(rand.NewSource(seed))}
}

// Draw returns a fresh identity.
func (v *Vault) Draw() *Identity {
	return NewIdentity(v.rng)
}
