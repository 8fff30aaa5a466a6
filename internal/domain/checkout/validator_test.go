package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm(p Payment) Form {
	return Form{
		Contact: Contact{Email: "meena@example.com", Phone: "9876543210"},
		Address: Address{
			Name:   "Meena Raman",
			Street: "12 Car Street",
			City:   "Madurai",
			State:  "TN",
			Zip:    "625001",
		},
		Payment: p,
	}
}

func TestValidate_Valid(t *testing.T) {
	payments := []Payment{
		COD{},
		UPI{ID: "meena@okbank"},
		Card{Name: "Meena", Number: "4111111111111111", ExpMonth: "09", ExpYear: "2030", CVV: "123"},
		NetBanking{Bank: "sbi"},
	}
	for _, p := range payments {
		t.Run(string(p.Method()), func(t *testing.T) {
			errs := Validate(validForm(p))
			assert.True(t, errs.Valid(), "unexpected errors: %v", errs.Fields())
		})
	}
}

func TestValidate_ContactAndAddress(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
		field  Field
		valid  bool
	}{
		{"phone ok", func(f *Form) { f.Contact.Phone = "9876543210" }, FieldPhone, true},
		{"phone leading digit", func(f *Form) { f.Contact.Phone = "1234567890" }, FieldPhone, false},
		{"phone short", func(f *Form) { f.Contact.Phone = "98765432" }, FieldPhone, false},
		{"phone long", func(f *Form) { f.Contact.Phone = "98765432101" }, FieldPhone, false},
		{"phone empty", func(f *Form) { f.Contact.Phone = "" }, FieldPhone, false},
		{"email ok", func(f *Form) { f.Contact.Email = "a@b.com" }, FieldEmail, true},
		{"email no tld", func(f *Form) { f.Contact.Email = "a@b" }, FieldEmail, false},
		{"email spaces", func(f *Form) { f.Contact.Email = "a b@c.com" }, FieldEmail, false},
		{"email empty", func(f *Form) { f.Contact.Email = "" }, FieldEmail, false},
		{"zip ok", func(f *Form) { f.Address.Zip = "600001" }, FieldZip, true},
		{"zip short", func(f *Form) { f.Address.Zip = "60001" }, FieldZip, false},
		{"zip letters", func(f *Form) { f.Address.Zip = "60000A" }, FieldZip, false},
		{"name empty", func(f *Form) { f.Address.Name = "" }, FieldName, false},
		{"name whitespace", func(f *Form) { f.Address.Name = "  " }, FieldName, true},
		{"city whitespace", func(f *Form) { f.Address.City = " " }, FieldCity, true},
		{"street empty", func(f *Form) { f.Address.Street = "" }, FieldAddress, false},
		{"city empty", func(f *Form) { f.Address.City = "" }, FieldCity, false},
		{"state empty", func(f *Form) { f.Address.State = "" }, FieldState, false},
		{"state unsupported", func(f *Form) { f.Address.State = "MH" }, FieldState, false},
		{"state kerala", func(f *Form) { f.Address.State = "KL" }, FieldState, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm(COD{})
			tt.mutate(&form)

			errs := Validate(form)
			assert.Equal(t, !tt.valid, errs.Invalid(tt.field))
			assert.Equal(t, tt.valid, errs.Valid())
		})
	}
}

func TestValidate_Card(t *testing.T) {
	base := Card{Name: "Meena", Number: "4111111111111111", ExpMonth: "12", ExpYear: "2029", CVV: "1234"}

	tests := []struct {
		name   string
		mutate func(*Card)
		field  Field
	}{
		{"number short", func(c *Card) { c.Number = "411111111111" }, FieldCardNumber},
		{"number spaced", func(c *Card) { c.Number = "4111 1111 1111 1111" }, FieldCardNumber},
		{"name empty", func(c *Card) { c.Name = "" }, FieldCardName},
		{"month zero", func(c *Card) { c.ExpMonth = "00" }, FieldExpMonth},
		{"month thirteen", func(c *Card) { c.ExpMonth = "13" }, FieldExpMonth},
		{"month unpadded", func(c *Card) { c.ExpMonth = "9" }, FieldExpMonth},
		{"year short", func(c *Card) { c.ExpYear = "29" }, FieldExpYear},
		{"cvv short", func(c *Card) { c.CVV = "12" }, FieldCVV},
		{"cvv long", func(c *Card) { c.CVV = "12345" }, FieldCVV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := base
			tt.mutate(&card)

			errs := Validate(validForm(card))
			assert.Equal(t, []Field{tt.field}, errs.Fields())
		})
	}
}

func TestValidate_CardNameWhitespace(t *testing.T) {
	card := Card{Name: " ", Number: "4111111111111111", ExpMonth: "12", ExpYear: "2029", CVV: "123"}
	assert.True(t, Validate(validForm(card)).Valid())
}

func TestValidate_OtherMethods(t *testing.T) {
	errs := Validate(validForm(UPI{ID: "meena"}))
	assert.Equal(t, []Field{FieldUPIID}, errs.Fields())

	errs = Validate(validForm(NetBanking{}))
	assert.Equal(t, []Field{FieldBank}, errs.Fields())

	errs = Validate(validForm(nil))
	assert.Equal(t, []Field{FieldPaymentMethod}, errs.Fields())
}

func TestValidate_DoesNotMutate(t *testing.T) {
	form := validForm(Card{Name: " Meena ", Number: "4111111111111111", ExpMonth: "01", ExpYear: "2030", CVV: "999"})
	form.Address.State = "tn"
	before := form

	Validate(form)
	assert.Equal(t, before, form)
}

func TestParsePayment(t *testing.T) {
	fields := PaymentFields{
		UPIID:    "x@y",
		CardName: "Meena",
		CardNum:  "4111111111111111",
		ExpMonth: "01",
		ExpYear:  "2030",
		CVV:      "123",
		Bank:     "hdfc",
	}

	fields.Method = "UPI"
	assert.Equal(t, UPI{ID: "x@y"}, ParsePayment(fields))

	fields.Method = "card"
	card, ok := ParsePayment(fields).(Card)
	require.True(t, ok)
	assert.Equal(t, "1111", card.Last4())

	fields.Method = "netbanking"
	assert.Equal(t, NetBanking{Bank: "hdfc"}, ParsePayment(fields))

	fields.Method = "cod"
	assert.Equal(t, COD{}, ParsePayment(fields))

	fields.Method = "cheque"
	assert.Nil(t, ParsePayment(fields))
}

func TestSupportedState(t *testing.T) {
	assert.True(t, SupportedState("TN"))
	assert.True(t, SupportedState("ka"))
	assert.False(t, SupportedState("AP"))
	assert.False(t, SupportedState(""))
}
