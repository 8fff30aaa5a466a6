package checkout

import (
	"regexp"
	"sort"
)

// Field identifies a form field for error highlighting.
type Field string

const (
	FieldEmail         Field = "email"
	FieldPhone         Field = "phone"
	FieldName          Field = "name"
	FieldAddress       Field = "address"
	FieldCity          Field = "city"
	FieldState         Field = "state"
	FieldZip           Field = "zip"
	FieldPaymentMethod Field = "paymentMethod"
	FieldUPIID         Field = "upiId"
	FieldCardName      Field = "cardName"
	FieldCardNumber    Field = "cardNumber"
	FieldExpMonth      Field = "expMonth"
	FieldExpYear       Field = "expYear"
	FieldCVV           Field = "cvv"
	FieldBank          Field = "bank"
)

var (
	emailRe      = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phoneRe      = regexp.MustCompile(`^[6-9]\d{9}$`)
	zipRe        = regexp.MustCompile(`^\d{6}$`)
	upiRe        = regexp.MustCompile(`.+@.+`)
	cardNumberRe = regexp.MustCompile(`^\d{16}$`)
	expMonthRe   = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	expYearRe    = regexp.MustCompile(`^\d{4}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
)

// Errors flags invalid fields. A field absent from the map is valid.
type Errors map[Field]bool

// Valid reports whether no field is flagged.
func (e Errors) Valid() bool {
	for _, bad := range e {
		if bad {
			return false
		}
	}
	return true
}

// Invalid reports whether f is flagged.
func (e Errors) Invalid(f Field) bool { return e[f] }

// Fields returns the flagged fields in name order.
func (e Errors) Fields() []Field {
	out := make([]Field, 0, len(e))
	for f, bad := range e {
		if bad {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e Errors) check(f Field, ok bool) {
	if !ok {
		e[f] = true
	}
}

// Validate checks every field of form and returns the flagged ones. The form
// is not modified.
func Validate(form Form) Errors {
	errs := Errors{}

	errs.check(FieldEmail, matches(emailRe, form.Contact.Email))
	errs.check(FieldPhone, matches(phoneRe, form.Contact.Phone))

	errs.check(FieldName, present(form.Address.Name))
	errs.check(FieldAddress, present(form.Address.Street))
	errs.check(FieldCity, present(form.Address.City))
	errs.check(FieldState, present(form.Address.State) && SupportedState(form.Address.State))
	errs.check(FieldZip, matches(zipRe, form.Address.Zip))

	switch p := form.Payment.(type) {
	case UPI:
		errs.check(FieldUPIID, matches(upiRe, p.ID))
	case Card:
		errs.check(FieldCardName, present(p.Name))
		errs.check(FieldCardNumber, matches(cardNumberRe, p.Number))
		errs.check(FieldExpMonth, matches(expMonthRe, p.ExpMonth))
		errs.check(FieldExpYear, matches(expYearRe, p.ExpYear))
		errs.check(FieldCVV, matches(cvvRe, p.CVV))
	case NetBanking:
		errs.check(FieldBank, present(p.Bank))
	case COD:
	default:
		errs[FieldPaymentMethod] = true
	}

	return errs
}

// present accepts any non-empty value, whitespace included.
func present(s string) bool { return s != "" }

func matches(re *regexp.Regexp, s string) bool {
	return s != "" && re.MatchString(s)
}
