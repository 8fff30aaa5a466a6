package checkout

import "strings"

// Method names a payment method.
type Method string

const (
	MethodUPI        Method = "upi"
	MethodCard       Method = "card"
	MethodNetBanking Method = "netbanking"
	MethodCOD        Method = "cod"
)

// Payment is one of UPI, Card, NetBanking or COD.
type Payment interface {
	Method() Method
	payment()
}

// UPI pays with a virtual payment address such as name@bank.
type UPI struct {
	ID string
}

// Card pays with a debit or credit card.
type Card struct {
	Name     string
	Number   string
	ExpMonth string
	ExpYear  string
	CVV      string
}

// Last4 returns the last four digits of the card number.
func (c Card) Last4() string {
	n := strings.TrimSpace(c.Number)
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// NetBanking pays through a bank's portal.
type NetBanking struct {
	Bank string
}

// COD is cash on delivery.
type COD struct{}

func (UPI) Method() Method        { return MethodUPI }
func (Card) Method() Method       { return MethodCard }
func (NetBanking) Method() Method { return MethodNetBanking }
func (COD) Method() Method        { return MethodCOD }

func (UPI) payment()        {}
func (Card) payment()       {}
func (NetBanking) payment() {}
func (COD) payment()        {}

// PaymentFields is the flat shape payment input arrives in.
type PaymentFields struct {
	Method   string `json:"paymentMethod"`
	UPIID    string `json:"upiId"`
	CardName string `json:"cardName"`
	CardNum  string `json:"cardNumber"`
	ExpMonth string `json:"expMonth"`
	ExpYear  string `json:"expYear"`
	CVV      string `json:"cvv"`
	Bank     string `json:"bank"`
}

// ParsePayment picks the fields that belong to the selected method and drops
// the rest. It returns nil for an unknown or missing method.
func ParsePayment(f PaymentFields) Payment {
	switch Method(strings.ToLower(strings.TrimSpace(f.Method))) {
	case MethodUPI:
		return UPI{ID: f.UPIID}
	case MethodCard:
		return Card{
			Name:     f.CardName,
			Number:   f.CardNum,
			ExpMonth: f.ExpMonth,
			ExpYear:  f.ExpYear,
			CVV:      f.CVV,
		}
	case MethodNetBanking:
		return NetBanking{Bank: f.Bank}
	case MethodCOD:
		return COD{}
	default:
		return nil
	}
}
