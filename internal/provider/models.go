package provider

import (
	"strconv"
	"strings"
)

// Handshake is one roll-in attempt issued by the provider.
type Handshake struct {
	Token     string
	RequestID string
	ClaimURL  string
	QR        []byte
}

// Profile is the account holder as reported by the provider.
type Profile struct {
	ClientID    string
	Name        string
	WebhookURL  string
	Permissions string
	Accounts    []Account
}

// FirstName returns the last whitespace-separated word of the holder name,
// which is how the provider orders "Surname Name".
func (p *Profile) FirstName() string {
	if p == nil {
		return ""
	}
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Account is one sub-account (card) of the holder. Amounts are in major units.
type Account struct {
	ID           string
	SendID       string
	Currency     string
	CashbackType string
	Balance      float64
	CreditLimit  float64
	MaskedPan    []string
	Type         string
	IBAN         string
}

// ProtoInfo describes the provider's protocol implementation.
type ProtoInfo struct {
	Proto struct {
		Version int `json:"version"`
		Patch   int `json:"patch"`
	} `json:"proto"`
	Implementation struct {
		Name     string `json:"name"`
		Author   string `json:"author"`
		Homepage string `json:"homepage"`
	} `json:"implementation"`
	Server struct {
		Push struct {
			API  string `json:"api"`
			Cert string `json:"cert"`
			Name string `json:"name"`
		} `json:"push"`
	} `json:"server"`
}

type clientInfoResponse struct {
	ClientID    string              `json:"clientId"`
	Name        string              `json:"name"`
	WebHookURL  string              `json:"webHookUrl"`
	Permissions string              `json:"permissions"`
	Accounts    []clientInfoAccount `json:"accounts"`
}

type clientInfoAccount struct {
	ID           string   `json:"id"`
	SendID       string   `json:"sendId"`
	CurrencyCode int      `json:"currencyCode"`
	CashbackType string   `json:"cashbackType"`
	Balance      int64    `json:"balance"`
	CreditLimit  int64    `json:"creditLimit"`
	MaskedPan    []string `json:"maskedPan"`
	Type         string   `json:"type"`
	IBAN         string   `json:"iban"`
}

var currencyCodes = map[int]string{
	980: "UAH",
	978: "EUR",
	840: "USD",
}

func currencyName(code int) string {
	if name, ok := currencyCodes[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

func minorToMajor(v int64) float64 {
	return float64(v) / 100.0
}

func (r clientInfoResponse) profile() *Profile {
	p := &Profile{
		ClientID:    r.ClientID,
		Name:        r.Name,
		WebhookURL:  r.WebHookURL,
		Permissions: r.Permissions,
		Accounts:    make([]Account, 0, len(r.Accounts)),
	}
	for _, a := range r.Accounts {
		p.Accounts = append(p.Accounts, Account{
			ID:           a.ID,
			SendID:       a.SendID,
			Currency:     currencyName(a.CurrencyCode),
			CashbackType: a.CashbackType,
			Balance:      minorToMajor(a.Balance),
			CreditLimit:  minorToMajor(a.CreditLimit),
			MaskedPan:    a.MaskedPan,
			Type:         a.Type,
			IBAN:         a.IBAN,
		})
	}
	return p
}
